package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"zone-router/algo"
	"zone-router/config"
	"zone-router/db"
	"zone-router/model"
	"zone-router/planner"
	"zone-router/source"
	"zone-router/utils"

	"github.com/spf13/cobra"
)

var (
	planFrom     string
	planTo       string
	planProfiles []string
	importOSM    string
)

var planCmd = &cobra.Command{
	Use:     "plan",
	Short:   "Plan one route per profile and print a summary",
	Example: `  zonerouter plan --from 39.90,116.30 --to 39.95,116.40 --profile baseline,aggressive`,
	RunE:    runPlan,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load the configured road source and store it in PostgreSQL",
	RunE:  runImport,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load zones, profiles and the road network and report problems",
	RunE:  runValidate,
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password <password>",
	Short: "Print a bcrypt hash for a users entry in the config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := utils.HashPassword(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	planCmd.Flags().StringVar(&planFrom, "from", "", "origin as lat,lng")
	planCmd.Flags().StringVar(&planTo, "to", "", "destination as lat,lng")
	planCmd.Flags().StringSliceVar(&planProfiles, "profile", []string{"baseline"}, "profiles to compute")
	planCmd.MarkFlagRequired("from")
	planCmd.MarkFlagRequired("to")

	importCmd.Flags().StringVar(&importOSM, "osm", "", "OSM XML file to import (overrides roads.source)")

	rootCmd.AddCommand(planCmd, importCmd, validateCmd, hashPasswordCmd)
}

// parseLatLng 解析 "lat,lng"
func parseLatLng(s string) (model.Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return model.Coordinate{}, fmt.Errorf("%q: expected lat,lng", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("%q: %w", s, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("%q: %w", s, err)
	}
	c := model.Coordinate{Lat: lat, Lng: lng}
	if !c.Valid() {
		return model.Coordinate{}, fmt.Errorf("%q: coordinate out of range", s)
	}
	return c, nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	from, err := parseLatLng(planFrom)
	if err != nil {
		return err
	}
	to, err := parseLatLng(planTo)
	if err != nil {
		return err
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	p, loader, err := loadPlanner(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer loader.Close()

	results, err := p.Plan(cmd.Context(), model.PlanningRequest{Origin: from, Destination: to, Profiles: planProfiles})
	if err != nil {
		return err
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	for _, name := range names {
		r := results[name]
		if r.Err != nil {
			fmt.Fprintf(out, "配置: %s\n失败: %s (%v)\n\n", name, model.ErrorKind(r.Err), r.Err)
			continue
		}
		fmt.Fprintln(out, algo.FormatPath(r.Route))
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var roads source.RoadSource
	switch {
	case importOSM != "":
		roads = &source.OSMFileSource{Path: importOSM}
	case cfg.Roads.Source == config.RoadsOSMFile:
		roads = &source.OSMFileSource{Path: cfg.Roads.OSMFile}
	case cfg.Roads.Source == config.RoadsOverpass:
		roads, err = source.NewOverpassSource(cfg.Roads.OverpassURL, cfg.Roads.BBox, cfg.Roads.HTTPTimeout)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("roads.source %q cannot be imported; use --osm or an osm/overpass source", cfg.Roads.Source)
	}

	network, err := source.Retry(ctx, logger, "roads", planner.RetryPolicy(cfg.Loader), roads.LoadNetwork)
	if err != nil {
		return err
	}
	// 构建一次图以便在写库前发现数据错误
	if _, err := algo.NewGraph(network, nil); err != nil {
		return err
	}

	conn, err := db.Open(ctx, cfg.Database, cfg.Loader.Attempts, logger)
	if err != nil {
		return err
	}
	if err := db.SaveNetwork(ctx, conn, network); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "导入了 %d 个节点, %d 条路段\n", len(network.Nodes), len(network.Segments))
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	loader, err := planner.NewLoader(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer loader.Close()

	snap, err := loader.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("%s: %w", model.ErrorKind(err), err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "节点: %d\n路段: %d\n区域: %d\n配置: %s\n",
		len(snap.Graph.Nodes), len(snap.Graph.Segments), snap.Zones.Len(), strings.Join(snap.Profiles.Names(), ", "))
	return nil
}
