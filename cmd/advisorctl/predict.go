package main

import (
	"github.com/spf13/cobra"

	"plant-advisor/internal/recommend"
)

type predictFlags struct {
	plant       string
	environment string
	careHistory string
	soil        string
	season      string
	symptoms    string
	extra       map[string]string
}

// features merges the named flags over any --feature pairs.
func (f *predictFlags) features(named map[string]string) map[string]string {
	out := make(map[string]string, len(f.extra)+len(named))
	for k, v := range f.extra {
		out[k] = v
	}
	for k, v := range named {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

func newPredictCmd(opts *options) *cobra.Command {
	f := &predictFlags{}

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Run one of the trained predictors",
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&f.plant, "plant", "", "plant type, e.g. Monstera")
	flags.StringVar(&f.environment, "environment", "indoor", "indoor or outdoor")
	flags.StringVar(&f.careHistory, "care-history", "", "recent care change, e.g. overwatering")
	flags.StringVar(&f.soil, "soil", "", "soil type, e.g. potting_soil")
	flags.StringVar(&f.season, "season", "", "spring, summer, fall or winter")
	flags.StringVar(&f.symptoms, "symptoms", "", "free-text symptom description")
	flags.StringToStringVar(&f.extra, "feature", nil, "any other feature as name=value, repeatable")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "care",
			Short: "Estimate the care success probability",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := opts.newApp(cmd.Context())
				if err != nil {
					return err
				}
				res, err := a.rec.PredictCareSuccess(cmd.Context(), f.features(map[string]string{
					recommend.FeaturePlantType:   f.plant,
					recommend.FeatureEnvironment: f.environment,
				}))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			},
		},
		&cobra.Command{
			Use:   "diagnose",
			Short: "Diagnose a plant problem from its symptoms",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := opts.newApp(cmd.Context())
				if err != nil {
					return err
				}
				res, err := a.rec.Diagnose(cmd.Context(), f.symptoms, f.features(map[string]string{
					recommend.FeaturePlantType:   f.plant,
					recommend.FeatureEnvironment: f.environment,
					recommend.FeatureCareHistory: f.careHistory,
				}))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			},
		},
		&cobra.Command{
			Use:   "fertilizer",
			Short: "Recommend a fertilizer",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := opts.newApp(cmd.Context())
				if err != nil {
					return err
				}
				res, err := a.rec.RecommendFertilizer(cmd.Context(), f.features(map[string]string{
					recommend.FeaturePlantType: f.plant,
					recommend.FeatureSoilType:  f.soil,
					recommend.FeatureSeason:    f.season,
				}))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			},
		},
	)
	return cmd
}
