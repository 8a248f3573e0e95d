package main

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fortuna/dubs/internal/analysis"
	"github.com/fortuna/dubs/internal/service"
)

var analyzeSeason string

var errNoDatabase = errors.New("analyze needs a database: set dsn in the config file or DUBS_DSN")

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Runs analyses against the stored datasets.",
}

var correlationsCmd = &cobra.Command{
	Use:   "correlations [name]",
	Short: "Lists the standard correlation matrices, or prints one of them.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		analyses, closeFn, err := openAnalyses(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		if len(args) == 0 {
			printMatrixList(analyses.MatrixNames())
			return nil
		}

		season, err := parseSeason(analyzeSeason)
		if err != nil {
			return err
		}
		m, err := analyses.Correlation(cmd.Context(), args[0], season)
		if err != nil {
			return err
		}
		printMatrix(m)
		return nil
	},
}

var regressCmd = &cobra.Command{
	Use:     "regress <formula>",
	Short:   "Fits an OLS formula on every season and the combined dataset.",
	Example: `  dubs analyze regress 'Abs_Point_Difference ~ Q("Golden State Warriors")' --season 2023`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		analyses, closeFn, err := openAnalyses(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		season, err := parseSeason(analyzeSeason)
		if err != nil {
			return err
		}
		results, err := analyses.Regressions(cmd.Context(), args[0], season)
		if err != nil {
			return err
		}
		printRegressions(results)
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Prints a record summary for every season.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DSN == "" {
			return errNoDatabase
		}
		db, err := openDatabase(cmd.Context(), cfg.DSN)
		if err != nil {
			return err
		}
		defer db.Close()

		summaries, err := service.NewDaysService(db, cfg.FeaturedPlayer).Summaries(cmd.Context())
		if err != nil {
			return err
		}
		printSummaries(summaries)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{correlationsCmd, regressCmd} {
		c.Flags().StringVar(&analyzeSeason, "season", analysis.AllDatasets, "season end year, or all")
	}
	analyzeCmd.AddCommand(correlationsCmd, regressCmd, summaryCmd)
}

func openAnalyses(cmd *cobra.Command) (*service.AnalysisService, func(), error) {
	if cfg.DSN == "" {
		return nil, nil, errNoDatabase
	}
	db, err := openDatabase(cmd.Context(), cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	rc, err := openRedis(cmd.Context(), cfg.RedisURL)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	c, err := analysisCache(rc)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	closeFn := func() {
		if rc != nil {
			rc.Close()
		}
		db.Close()
	}
	days := service.NewDaysService(db, cfg.FeaturedPlayer)
	return service.NewAnalysisService(days, c, service.DefaultCacheTTL), closeFn, nil
}

func parseSeason(raw string) (int, error) {
	if raw == "" || raw == analysis.AllDatasets {
		return 0, nil
	}
	season, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("season must be a year such as 2023, or all")
	}
	return season, nil
}
