package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lawnchairsociety/mapforge/internal/database"
	"github.com/lawnchairsociety/mapforge/internal/pixellab"
	"github.com/lawnchairsociety/mapforge/internal/tileset"
)

func newTilesetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tileset",
		Short: "Generate and inspect Wang tilesets",
	}
	cmd.AddCommand(
		newTilesetCreateCmd(a),
		newTilesetResumeCmd(a),
		newTilesetListCmd(a),
		newTilesetJobsCmd(a),
	)
	return cmd
}

func newTilesetCreateCmd(a *app) *cobra.Command {
	var (
		transition     float64
		transitionDesc string
		tileSize       int
		lowerBase      string
		upperBase      string
		outDir         string
		rawOpts        map[string]string
	)

	cmd := &cobra.Command{
		Use:   "create TERRAIN TERRAIN [TERRAIN...]",
		Short: "Generate a chain of tilesets linking consecutive terrains",
		Long: `Generate one tileset per consecutive pair of terrains. Each tileset is
anchored to the previous one's upper base tile so neighbouring biomes
match at their shared edge. Completed tilesets are saved locally even if
a later step fails.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := pixellab.ParseOptions(rawOpts)
			if err != nil {
				return err
			}
			if len(args) > 2 && (lowerBase != "" || upperBase != "" || transitionDesc != "") {
				return fmt.Errorf("--lower-base, --upper-base and --transition-description need exactly two terrains")
			}

			a.saveTilesetsTo(outDir)
			f, err := a.openForge(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Close()

			if len(args) == 2 {
				res, err := f.CreateTileset(cmd.Context(), tileset.Request{
					LowerDescription:      args[0],
					UpperDescription:      args[1],
					TransitionSize:        transition,
					TransitionDescription: transitionDesc,
					TileSize:              tileSize,
					LowerBaseTileID:       lowerBase,
					UpperBaseTileID:       upperBase,
					Options:               opts,
				})
				if res != nil {
					printResults(cmd.OutOrStdout(), []*tileset.Result{res})
				}
				return err
			}

			results, err := f.CreateTilesetChain(cmd.Context(), args, transition, tileSize, opts)
			printResults(cmd.OutOrStdout(), results)
			return err
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&transition, "transition", 0.25, "Transition size: 0, 0.25, 0.5 or 1.0")
	flags.StringVar(&transitionDesc, "transition-description", "", "Description of the transition band")
	flags.IntVar(&tileSize, "tile-size", 16, "Tile size in pixels: 16 or 32")
	flags.StringVar(&lowerBase, "lower-base", "", "Anchor the lower terrain to this base tile id")
	flags.StringVar(&upperBase, "upper-base", "", "Anchor the upper terrain to this base tile id")
	flags.StringVar(&outDir, "out-dir", "", "Directory to save tilesets under (default: the configured tilesets directory)")
	flags.StringToStringVarP(&rawOpts, "option", "o", nil, "Generation option key=value (repeatable)")
	return cmd
}

func newTilesetResumeCmd(a *app) *cobra.Command {
	var (
		all    bool
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "resume [JOB_ID]",
		Short: "Resume polling journaled tileset jobs and save them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("give either a job id or --all")
			}

			a.saveTilesetsTo(outDir)
			f, err := a.openForge(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Close()

			if all {
				results, err := f.ResumePending(cmd.Context())
				if len(results) == 0 && err == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No pending jobs")
				}
				printResults(cmd.OutOrStdout(), results)
				return err
			}

			res, err := f.ResumeTileset(cmd.Context(), args[0])
			if res != nil {
				printResults(cmd.OutOrStdout(), []*tileset.Result{res})
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Resume every pending job in the journal")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory to save tilesets under (default: the configured tilesets directory)")
	return cmd
}

func newTilesetListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List locally saved tilesets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := tileset.ListLocal(a.cfg.Assets.TilesetsDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintf(out, "No tilesets in %s\n", a.cfg.Assets.TilesetsDir)
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tLOWER\tUPPER\tSIZE\tSAVED\tDIR")
			for _, md := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					md.TilesetID, md.LowerDescription, md.UpperDescription,
					md.TileSize, md.SavedAt.Local().Format(time.DateTime), md.Dir)
			}
			return w.Flush()
		},
	}
}

func newTilesetJobsCmd(a *app) *cobra.Command {
	var status, chain string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List journaled tileset jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.openForge(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Close()

			var jobs []*database.JobRecord
			if chain != "" {
				jobs, err = f.ChainJobs(cmd.Context(), chain)
			} else {
				jobs, err = f.Jobs(cmd.Context(), status)
			}
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "JOB\tSTATUS\tLOWER\tUPPER\tCHAIN\tSTEP\tUPDATED")
			for _, j := range jobs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					j.JobID, j.Status, j.LowerDescription, j.UpperDescription,
					j.ChainID, j.ChainStep, j.UpdatedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only show jobs with this status (pending, completed, failed)")
	cmd.Flags().StringVar(&chain, "chain", "", "Show the jobs of one chain in step order")
	cmd.MarkFlagsMutuallyExclusive("status", "chain")
	return cmd
}

func printResults(w io.Writer, results []*tileset.Result) {
	for i, res := range results {
		fmt.Fprintf(w, "[%d] %s -> %s\n", i, res.LowerDescription, res.UpperDescription)
		fmt.Fprintf(w, "    tileset:    %s\n", res.TilesetID)
		fmt.Fprintf(w, "    lower base: %s\n", res.LowerBaseTileID)
		fmt.Fprintf(w, "    upper base: %s\n", res.UpperBaseTileID)
		if res.LocalPath != "" {
			fmt.Fprintf(w, "    saved to:   %s\n", res.LocalPath)
		}
	}
}
