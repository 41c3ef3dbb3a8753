package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/securebot-ai/securebot/pkg/config"
	"github.com/securebot-ai/securebot/pkg/presenter"
	"github.com/securebot-ai/securebot/pkg/skills"
)

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Inspect and manage the skill library",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var skillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered skills",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadRegistry(cmd)
		if err != nil {
			return err
		}

		p := presenter.New()
		all := registry.List()
		p.Section(fmt.Sprintf("Skills (%d)", len(all)))
		for _, skill := range all {
			fmt.Printf("%-30s %-7s %s\n", skill.Name, skill.Mode, skill.Description)
		}
		return nil
	},
}

var skillShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show one skill's definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadRegistry(cmd)
		if err != nil {
			return err
		}

		skill := registry.Get(args[0])
		if skill == nil {
			return errors.Errorf("skill %q not found", args[0])
		}

		p := presenter.New()
		p.Section(skill.Name)
		p.Info("Description: " + skill.Description)
		p.Info("Mode: " + string(skill.Mode))
		p.Info("Triggers: " + strings.Join(skill.Triggers, ", "))
		p.Info("Path: " + skill.Path)
		p.Separator()
		fmt.Println(skill.Content)
		return nil
	},
}

var skillReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Ask a running gateway to reload the skill registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		url := fmt.Sprintf("http://%s:%d/skills/reload", cfg.Server.Host, cfg.Server.Port)
		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Post(url, "application/json", nil)
		if err != nil {
			return errors.Wrap(err, "gateway unreachable, is securebot serve running?")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return errors.Errorf("reload failed: HTTP %d", resp.StatusCode)
		}

		var result struct {
			Count int `json:"count"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return errors.Wrap(err, "failed to decode reload response")
		}

		presenter.New().Success(fmt.Sprintf("Registry reloaded, %d skills", result.Count))
		return nil
	},
}

func loadRegistry(cmd *cobra.Command) (*skills.Registry, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	registry := skills.NewRegistry(cfg.SkillsDir)
	if err := registry.Reload(cmd.Context()); err != nil {
		return nil, errors.Wrap(err, "failed to load skills")
	}
	return registry, nil
}

func init() {
	skillCmd.AddCommand(skillListCmd)
	skillCmd.AddCommand(skillShowCmd)
	skillCmd.AddCommand(skillReloadCmd)
}
