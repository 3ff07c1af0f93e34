package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/cvsift/internal/config"
	"github.com/kalambet/cvsift/internal/manifest"
	"github.com/kalambet/cvsift/internal/reconcile"
)

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List resumes and their labels",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := fetchResumes()
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("no resumes tracked")
			return nil
		}

		width := 0
		for _, e := range entries {
			if len(e.Filename) > width {
				width = len(e.Filename)
			}
		}
		for _, e := range entries {
			fmt.Printf("  %-*s  %s\n", width, e.Filename, labelText(e.Label))
		}
		return nil
	},
}

func fetchResumes() ([]manifest.Entry, error) {
	client, err := newAPIClient()
	if err != nil {
		return nil, err
	}

	resp, err := client.get("/resumes")
	if err != nil {
		return nil, err
	}

	var entries []manifest.Entry
	if err := decodeJSON(resp, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func labelText(label manifest.Status) string {
	if label.IsReviewed() {
		if comment := label.ReviewComment(); comment != "" {
			return colorize(colorCyan, "reviewed") + ": " + comment
		}
		return colorize(colorCyan, "reviewed")
	}
	switch label {
	case manifest.StatusElite, manifest.StatusExceeds, manifest.StatusPassed:
		return colorize(colorGreen, string(label))
	case manifest.StatusRejected, manifest.StatusFailed:
		return colorize(colorRed, string(label))
	default:
		return colorize(colorYellow, string(label))
	}
}

// --- reconcile ---

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Resync manifest entries, on-disk files, and queued jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/reconcile"
		if force {
			path += "?force=true"
		}
		resp, err := client.post(path, nil)
		if err != nil {
			return err
		}

		var res reconcile.Result
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}

		printSuccess("Removed %d orphans, requeued %d, kept %d", res.Removed, res.Requeued, res.Kept)
		return nil
	},
}

func init() {
	reconcileCmd.Flags().Bool("force", false, "touch stuck files to regenerate watcher events")
}

// --- review ---

var reviewCmd = &cobra.Command{
	Use:   "review <filename> <comment...>",
	Short: "Record a human verdict for a processed resume",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := args[0]
		comment := strings.Join(args[1:], " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/resumes/"+filename+"/review", map[string]string{"comment": comment})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Reviewed %s: %s", filename, comment)
		return nil
	},
}

// --- condition ---

var conditionCmd = &cobra.Command{
	Use:   "condition [text...]",
	Short: "Show or replace the fitness condition",
	Long: `Show or replace the natural-language fitness condition resumes are
judged against. With no arguments the current condition is printed;
otherwise the arguments become the new condition for future admissions.
Jobs already in flight keep the condition they were enqueued with.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if len(args) == 0 {
			resp, err := client.get("/condition")
			if err != nil {
				return err
			}
			var result map[string]string
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
			if result["condition"] == "" {
				fmt.Println("no condition set")
				return nil
			}
			fmt.Println(result["condition"])
			return nil
		}

		condition := strings.Join(args, " ")
		resp, err := client.put("/condition", map[string]string{"condition": condition})
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Condition updated")
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
