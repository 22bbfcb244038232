// advisectl runs the advice pipeline from the command line against the stores
// configured in the environment.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"healthadvisor/backend/internal/advisor"
	"healthadvisor/backend/internal/bootstrap"
	"healthadvisor/backend/internal/config"
	"healthadvisor/backend/internal/health"
	"healthadvisor/backend/internal/intent"
	"healthadvisor/backend/internal/kv"
	"healthadvisor/backend/internal/qc"
	"healthadvisor/backend/internal/routing"
)

type chatFlags struct {
	user           string
	intent         string
	message        string
	idempotencyKey string
}

type mealFlags struct {
	user        string
	description string
	items       []string
	carb        float64
	protein     float64
	fat         float64
	kcal        float64
	fried       bool
}

func main() {
	if err := newRootCmd(config.Load).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(loadConfig func() config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:          "advisectl",
		Short:        "advisectl - run health advice requests locally",
		SilenceUsage: true,
	}

	var chat chatFlags
	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Answer one chat message through the full pipeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), loadConfig(), func(rt *bootstrap.Runtime) error {
				resp, err := rt.Pipeline.Chat(cmd.Context(), advisor.ChatRequest{
					UserID:         chat.user,
					Intent:         chat.intent,
					Message:        chat.message,
					IdempotencyKey: chat.idempotencyKey,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
	chatCmd.Flags().StringVarP(&chat.user, "user", "u", "", "User id")
	chatCmd.Flags().StringVarP(&chat.intent, "intent", "i", "", "Explicit intent tag")
	chatCmd.Flags().StringVarP(&chat.message, "message", "m", "", "Message text")
	chatCmd.Flags().StringVar(&chat.idempotencyKey, "idempotency-key", "", "Idempotency key")

	var meal mealFlags
	mealCmd := &cobra.Command{
		Use:   "meal",
		Short: "Build meal feedback for one logged meal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), loadConfig(), func(rt *bootstrap.Runtime) error {
				resp, err := rt.Pipeline.MealFeedback(cmd.Context(), advisor.MealFeedbackRequest{
					UserID: meal.user,
					Meal: health.Meal{
						Description: meal.description,
						Items:       meal.items,
						CarbG:       meal.carb,
						ProteinG:    meal.protein,
						FatG:        meal.fat,
						Kcal:        meal.kcal,
						Fried:       meal.fried,
					},
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
	mealCmd.Flags().StringVarP(&meal.user, "user", "u", "", "User id")
	mealCmd.Flags().StringVarP(&meal.description, "description", "d", "", "Free-text meal description")
	mealCmd.Flags().StringSliceVar(&meal.items, "items", nil, "Comma-separated meal items")
	mealCmd.Flags().Float64Var(&meal.carb, "carb", 0, "Carbohydrates in grams")
	mealCmd.Flags().Float64Var(&meal.protein, "protein", 0, "Protein in grams")
	mealCmd.Flags().Float64Var(&meal.fat, "fat", 0, "Fat in grams")
	mealCmd.Flags().Float64Var(&meal.kcal, "kcal", 0, "Energy in kcal")
	mealCmd.Flags().BoolVar(&meal.fried, "fried", false, "Meal was fried")

	routeCmd := &cobra.Command{
		Use:   "route [intent]",
		Short: "Show the model route for an intent, or the whole table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			router, err := routing.LoadRouter(loadConfig().RoutesFile)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return printJSON(cmd.OutOrStdout(), router.Route(intent.Intent(strings.TrimSpace(args[0]))))
			}
			table := make(map[intent.Intent]routing.Route, len(intent.All))
			for _, tag := range intent.All {
				table[tag] = router.Route(tag)
			}
			return printJSON(cmd.OutOrStdout(), table)
		},
	}

	sanitizeCmd := &cobra.Command{
		Use:   "sanitize [text]",
		Short: "Run text through the output checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(raw)
			}
			result := qc.New(qc.DefaultTerms, qc.MaxRunes).Sanitize(text)
			if len(result.Found) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "replaced: %s\n", strings.Join(result.Found, ", "))
			}
			if result.Truncated {
				fmt.Fprintln(cmd.ErrOrStderr(), "truncated")
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Text)
			return nil
		},
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Evict expired cache entries once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), loadConfig(), func(rt *bootstrap.Runtime) error {
				removed := kv.NewSweeper(rt.Store, rt.Config.CacheSweepSchedule).RunOnce(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired entries\n", removed)
				return nil
			})
		},
	}

	root.AddCommand(chatCmd, mealCmd, routeCmd, sanitizeCmd, sweepCmd)
	return root
}

func withRuntime(ctx context.Context, cfg config.Config, run func(*bootstrap.Runtime) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()
	return run(rt)
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(v)
}
