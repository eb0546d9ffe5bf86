package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"plant-advisor/internal/common/database"
	"plant-advisor/internal/common/logger"
	"plant-advisor/internal/knowledge"
)

func newKnowledgeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Inspect or publish the plant knowledge base",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show [plant]",
			Short: "Print the care sheet of one plant, or list the known plants",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				kb, err := knowledge.NewStaticProvider()
				if err != nil {
					return err
				}
				if len(args) == 0 {
					return printJSON(cmd.OutOrStdout(), kb.PlantNames())
				}
				info := kb.GetPlantInfo(cmd.Context(), args[0])
				if !info.Found() {
					return fmt.Errorf("no care sheet for %q", args[0])
				}
				return printJSON(cmd.OutOrStdout(), info)
			},
		},
		&cobra.Command{
			Use:   "search <query>",
			Short: "List plants whose name or care notes mention query",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				kb, err := knowledge.NewStaticProvider()
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), kb.SearchPlants(args[0]))
			},
		},
		newGuideCmd(),
		&cobra.Command{
			Use:   "sync",
			Short: "Index the built-in care sheets into Elasticsearch",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				log := logger.NewStructured(cfg.Logging.Level, "console")

				kb, err := knowledge.NewStaticProvider()
				if err != nil {
					return err
				}
				es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
				if err != nil {
					return err
				}

				provider := knowledge.NewElasticsearchProvider(es, cfg.Knowledge, kb, log)
				if err := provider.Sync(cmd.Context(), kb.Plants()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "indexed %d plants into %q\n", len(kb.Plants()), cfg.Knowledge.Index)
				return nil
			},
		},
	)
	return cmd
}

func newGuideCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "guide fertilizer|disease|repotting|season [key]",
		Short: "Print one of the general care guides",
		Long: `guide prints a general guide. fertilizer takes a fertilizer type such as
balanced_20_20_20, disease a symptom such as wilting (or nothing to list the
known symptoms), season a season name. repotting takes no key.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := knowledge.NewStaticProvider()
			if err != nil {
				return err
			}
			key := ""
			if len(args) == 2 {
				key = args[1]
			}

			var (
				guide interface{}
				found = true
			)
			switch args[0] {
			case "fertilizer":
				guide, found = kb.FertilizerGuide(key)
			case "disease":
				if key == "" {
					guide = kb.Symptoms()
				} else {
					guide, found = kb.DiseaseGuide(key)
				}
			case "repotting":
				guide = kb.RepottingGuide()
			case "season":
				guide, found = kb.SeasonalCare(key)
			default:
				return fmt.Errorf("unknown guide %q", args[0])
			}
			if !found {
				return fmt.Errorf("no %s guide for %q", args[0], key)
			}
			return printJSON(cmd.OutOrStdout(), guide)
		},
	}
}
