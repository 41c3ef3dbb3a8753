package presenter

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func newTestPresenter() (*TerminalPresenter, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewWithWriters(&out, &errOut), &out, &errOut
}

func TestError(t *testing.T) {
	p, out, errOut := newTestPresenter()

	p.Error(errors.New("boom"), "routing failed")
	assert.Contains(t, errOut.String(), "[ERROR] routing failed: boom")
	assert.Empty(t, out.String())

	errOut.Reset()
	p.Error(nil, "ignored")
	assert.Empty(t, errOut.String())
}

func TestInfoAndQuiet(t *testing.T) {
	p, out, _ := newTestPresenter()

	p.Info("hello")
	assert.Contains(t, out.String(), "hello")

	out.Reset()
	p.SetQuiet(true)
	p.Info("hidden")
	p.Success("hidden")
	p.Warning("hidden")
	p.Separator()
	assert.Empty(t, out.String())
}

func TestSection(t *testing.T) {
	p, out, _ := newTestPresenter()
	p.Section("Skills")
	assert.Contains(t, out.String(), "Skills")
	assert.Contains(t, out.String(), "------")
}

func TestStats(t *testing.T) {
	p, out, _ := newTestPresenter()
	p.Stats(&RouteStats{
		Method:       "skill_execution",
		Engine:       "ollama",
		Intent:       "action",
		Cost:         0.0,
		InputTokens:  0,
		OutputTokens: 0,
	})
	assert.Contains(t, out.String(), "skill_execution")
	assert.Contains(t, out.String(), "$0.0000")

	out.Reset()
	p.Stats(nil)
	assert.Empty(t, out.String())
}
