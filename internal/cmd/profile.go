package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tickerlens/tickerlens/internal/core"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show fetch profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Profiles:")
		for _, profile := range core.BuiltInProfiles {
			fmt.Printf("- %s (%s)\n", profile.Name, kindList(profile.Kinds))
		}
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show profile details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(args[0])
		if name == "" {
			return errors.New("profile name is required")
		}

		profile, err := core.LookupProfile(name)
		if err != nil {
			return err
		}

		printProfile(profile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
}

func printProfile(profile core.Profile) {
	fmt.Printf("Profile: %s\n", profile.Name)
	if profile.Description != "" {
		fmt.Printf("Description: %s\n", profile.Description)
	}
	fmt.Printf("Kinds: %s\n", kindList(profile.Kinds))
}

func kindList(kinds []core.DataKind) string {
	values := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		values = append(values, string(kind))
	}
	return strings.Join(values, ", ")
}
