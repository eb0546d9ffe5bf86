package main

import (
	"github.com/spf13/cobra"

	"plant-advisor/internal/conversation"
	"plant-advisor/internal/models"
)

func newTrainCmd(opts *options) *cobra.Command {
	var vocab string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the models on the seed corpus and print their statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd.Context())
			if err != nil {
				return err
			}
			if vocab != "" {
				return printJSON(cmd.OutOrStdout(), a.rec.Vocabulary(vocab))
			}
			return printJSON(cmd.OutOrStdout(), a.rec.Stats())
		},
	}
	cmd.Flags().StringVar(&vocab, "vocabulary", "", "print the encoded values of one feature instead")
	return cmd
}

func newFeedbackCmd(opts *options) *cobra.Command {
	var record models.FeedbackRecord
	var task string

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Add one labelled example and report whether it triggered a retrain",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd.Context())
			if err != nil {
				return err
			}
			record.Task = models.Task(task)
			receipt, err := a.rec.AddFeedback(cmd.Context(), record)
			if receipt == nil {
				return err
			}
			if perr := printJSON(cmd.OutOrStdout(), receipt); perr != nil {
				return perr
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&record.UserID, "user", "local", "user submitting the feedback")
	flags.StringVar(&task, "task", string(models.TaskCareSuccess), "care_success, diagnosis or fertilizer")
	flags.StringToStringVar(&record.Features, "feature", nil, "feature=value, repeatable")
	flags.StringVar(&record.Symptoms, "symptoms", "", "symptom text (diagnosis)")
	flags.StringVar(&record.Label, "label", "", "observed label (diagnosis, fertilizer)")
	flags.Float64Var(&record.SuccessRate, "success-rate", 0, "observed success rate (care_success)")
	flags.StringVar(&record.Comment, "comment", "", "free-form note")
	return cmd
}

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the conversation categories and their questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := conversation.DefaultCatalog()
			infos := make([]*conversation.CategoryInfo, 0, len(conversation.AllCategories()))
			for _, id := range conversation.AllCategories() {
				if info, ok := catalog.Get(id); ok {
					infos = append(infos, info)
				}
			}
			return printJSON(cmd.OutOrStdout(), infos)
		},
	}
}
