package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/engagic/engagic/internal/types"
)

var citiesCmd = &cobra.Command{
	Use:   "cities",
	Short: "Manage the city roster",
}

var citiesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add one city",
	Long: `Adds a city to the roster. With --name/--state/--vendor/--slug
flags the city is added directly; without them an interactive form
opens (requires a terminal).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := rootCtx

		city := &types.City{}
		city.Name, _ = cmd.Flags().GetString("name")
		city.State, _ = cmd.Flags().GetString("state")
		vendorStr, _ := cmd.Flags().GetString("vendor")
		city.Vendor = types.Vendor(vendorStr)
		city.Slug, _ = cmd.Flags().GetString("slug")
		city.County, _ = cmd.Flags().GetString("county")

		if city.Name == "" {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("no --name given and stdout is not a terminal")
			}
			if err := cityForm(city); err != nil {
				return err
			}
		}
		if city.Name == "" || city.State == "" || city.Slug == "" {
			return fmt.Errorf("name, state and slug are required")
		}
		if !city.Vendor.Valid() {
			return fmt.Errorf("unknown vendor %q (one of %v)", city.Vendor, types.Vendors)
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.UpsertCity(ctx, city); err != nil {
			return err
		}
		fmt.Printf("added %s (%s on %s)\n", city.Banana, city.Name, city.Vendor)
		return nil
	},
}

func cityForm(city *types.City) error {
	vendorOptions := make([]huh.Option[string], 0, len(types.Vendors))
	for _, v := range types.Vendors {
		vendorOptions = append(vendorOptions, huh.NewOption(string(v), string(v)))
	}

	var vendorStr string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("City name").
				Placeholder("e.g., Palo Alto").
				Value(&city.Name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name is required")
					}
					return nil
				}),

			huh.NewInput().
				Title("State").
				Placeholder("two-letter code, e.g., CA").
				Value(&city.State).
				Validate(func(s string) error {
					if len(strings.TrimSpace(s)) != 2 {
						return fmt.Errorf("use the two-letter state code")
					}
					return nil
				}),

			huh.NewSelect[string]().
				Title("Vendor").
				Description("The agenda platform this city publishes on").
				Options(vendorOptions...).
				Value(&vendorStr),

			huh.NewInput().
				Title("Slug").
				Description("The city's subdomain on the vendor platform").
				Placeholder("e.g., paloalto").
				Value(&city.Slug),

			huh.NewInput().
				Title("County (optional)").
				Value(&city.County),

			huh.NewConfirm().
				Title("Add this city?").
				Affirmative("Add").
				Negative("Cancel"),
		),
	)

	if err := form.Run(); err != nil {
		if err == huh.ErrUserAborted {
			return fmt.Errorf("canceled")
		}
		return err
	}
	city.Vendor = types.Vendor(vendorStr)
	return nil
}

var citiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked cities",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := rootCtx

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		cities, err := store.ListCities(ctx)
		if err != nil {
			return err
		}
		printCityTable(cities)
		return nil
	},
}

// cityRoster is the YAML import format: a list of cities, optionally
// with zipcodes (first one becomes primary).
type cityRoster struct {
	Cities []struct {
		Name     string   `yaml:"name"`
		State    string   `yaml:"state"`
		Vendor   string   `yaml:"vendor"`
		Slug     string   `yaml:"slug"`
		County   string   `yaml:"county"`
		Zipcodes []string `yaml:"zipcodes"`
	} `yaml:"cities"`
}

var citiesImportCmd = &cobra.Command{
	Use:   "import <roster.yaml>",
	Short: "Import cities from a YAML roster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := rootCtx

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var roster cityRoster
		if err := yaml.Unmarshal(data, &roster); err != nil {
			return fmt.Errorf("parsing roster: %w", err)
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		imported := 0
		for _, entry := range roster.Cities {
			city := &types.City{
				Name:   entry.Name,
				State:  entry.State,
				Vendor: types.Vendor(entry.Vendor),
				Slug:   entry.Slug,
				County: entry.County,
			}
			if err := store.UpsertCity(ctx, city); err != nil {
				logger.Error("skipping roster entry", "name", entry.Name, "error", err)
				continue
			}
			for i, zip := range entry.Zipcodes {
				if err := store.AddZipcode(ctx, city.Banana, zip, i == 0); err != nil {
					logger.Error("failed to add zipcode", "banana", city.Banana, "zipcode", zip, "error", err)
				}
			}
			imported++
		}
		fmt.Printf("imported %d of %d cities\n", imported, len(roster.Cities))
		return nil
	},
}

var citiesZipcodeCmd = &cobra.Command{
	Use:   "zipcode <banana> <zipcode>",
	Short: "Associate a zipcode with a city",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := rootCtx
		primary, _ := cmd.Flags().GetBool("primary")

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if _, err := store.GetCity(ctx, args[0]); err != nil {
			return err
		}
		if err := store.AddZipcode(ctx, args[0], args[1], primary); err != nil {
			return err
		}
		fmt.Printf("added %s to %s\n", args[1], args[0])
		return nil
	},
}

func init() {
	citiesAddCmd.Flags().String("name", "", "city name")
	citiesAddCmd.Flags().String("state", "", "two-letter state code")
	citiesAddCmd.Flags().String("vendor", "", "agenda platform vendor")
	citiesAddCmd.Flags().String("slug", "", "vendor subdomain slug")
	citiesAddCmd.Flags().String("county", "", "county name")
	citiesZipcodeCmd.Flags().Bool("primary", false, "mark as the city's primary zipcode")

	citiesCmd.AddCommand(citiesAddCmd, citiesListCmd, citiesImportCmd, citiesZipcodeCmd)
	rootCmd.AddCommand(citiesCmd)
}
