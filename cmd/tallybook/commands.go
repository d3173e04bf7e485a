package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jask/tallybook/internal/config"
	"github.com/jask/tallybook/internal/database/repository"
	"github.com/jask/tallybook/internal/service"
)

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid id %q", service.ErrValidation, s)
	}
	return id, nil
}

func newAccountsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List accounts and manage aliases and selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			accts, err := a.ledger.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Println(a.renderer.Accounts(accts))
			return nil
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "alias ACCOUNT ALIAS",
			Short: "Give an account a short alias",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.ledger.SetAlias(cmd.Context(), args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "unalias ACCOUNT",
			Short: "Remove an account's alias",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.ledger.DeleteAlias(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "select ACCOUNT",
			Short: "Restrict default queries to selected accounts",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.ledger.SelectAccount(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "unselect [ACCOUNT]",
			Short: "Unselect one account, or all of them",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ref := ""
				if len(args) == 1 {
					ref = args[0]
				}
				return a.ledger.UnselectAccount(cmd.Context(), ref)
			},
		},
	)
	return cmd
}

func newTxnCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "txn",
		Short: "Insert or re-tag single transactions",
	}

	var nt service.NewTransaction
	var date string
	add := &cobra.Command{
		Use:   "add",
		Short: "Insert one transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := time.Parse(repository.DateLayout, date)
			if err != nil {
				return fmt.Errorf("%w: --date must be YYYY-MM-DD", service.ErrValidation)
			}
			nt.PostedDate = d
			id, created, err := a.ledger.InsertTransaction(cmd.Context(), nt)
			if err != nil {
				return err
			}
			if !created {
				cmd.Printf("transaction already stored as %d\n", id)
				return nil
			}
			cmd.Printf("added transaction %d\n", id)
			return nil
		},
	}
	f := add.Flags()
	f.StringVar(&nt.Account, "account", "", "account name or alias")
	f.StringVar(&date, "date", "", "posted date, YYYY-MM-DD")
	f.StringVar(&nt.Description, "description", "", "description")
	f.Float64Var(&nt.Debit, "debit", 0, "debit amount")
	f.Float64Var(&nt.Credit, "credit", 0, "credit amount")
	f.Float64Var(&nt.Balance, "balance", 0, "balance after the transaction")
	f.StringVar(&nt.Type, "type", "Debit", "Debit, Credit or Direct Debit")
	f.StringVar(&nt.Currency, "currency", "GBP", "currency code")
	_ = add.MarkFlagRequired("account")
	_ = add.MarkFlagRequired("date")

	touch := &cobra.Command{
		Use:   "touch ID",
		Short: "Recompute a transaction's tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.ledger.TouchTransaction(cmd.Context(), id)
		},
	}
	cmd.AddCommand(add, touch)
	return cmd
}

func newTagsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Manage tag rules",
	}

	var note, description, txType, amount, period string
	var txnID int64
	add := &cobra.Command{
		Use:   "add TAG",
		Short: "Add a tag rule and apply it to matching transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nr := service.NewTagRule{Tag: args[0], HumanReadable: note}
			fl := cmd.Flags()
			if fl.Changed("description") {
				nr.DescriptionContains = &description
			}
			if fl.Changed("type") {
				nr.TransactionType = &txType
			}
			if fl.Changed("transaction-id") {
				nr.TransactionID = &txnID
			}
			if amount != "" {
				lo, hi, err := service.ParseAmountRange(amount)
				if err != nil {
					return err
				}
				nr.AmountMin, nr.AmountMax = lo, hi
			}
			if period != "" {
				p, err := service.ParsePeriod(period, time.Now())
				if err != nil {
					return err
				}
				nr.FromDate, nr.ToDate = p.From, p.To
			}
			res, err := a.ledger.AddTagRule(cmd.Context(), nr)
			if err != nil {
				return err
			}
			cmd.Printf("added rule %d, tagged %d transactions\n", res.ID, res.Tagged)
			return nil
		},
	}
	f := add.Flags()
	f.StringVar(&note, "note", "", "human readable description (generated when empty)")
	f.StringVar(&description, "description", "", "case-insensitive description substring")
	f.StringVar(&txType, "type", "", "Debit or Credit")
	f.StringVar(&amount, "amount", "", "amount range MIN-MAX, ':' for open")
	f.StringVar(&period, "period", "", "date period, e.g. 2023, 2023/02, march-:")
	f.Int64Var(&txnID, "transaction-id", 0, "pin the rule to one transaction")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a tag rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.ledger.DeleteTagRule(cmd.Context(), id)
		},
	}

	list := &cobra.Command{
		Use:   "list [PREFIX]",
		Short: "List tag rules, optionally by tag prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			rules, err := a.ledger.ListTagRules(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			cmd.Println(a.renderer.Rules(rules))
			return nil
		},
	}

	var fix bool
	check := &cobra.Command{
		Use:   "check",
		Short: "Verify stored tags against the rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := a.ledger.VerifyTags(cmd.Context())
			if err != nil {
				return err
			}
			if d.Empty() {
				cmd.Println("tags are consistent")
				return nil
			}
			cmd.Printf("%d missing, %d extra tag assignments\n", len(d.Missing), len(d.Extra))
			if !fix {
				return nil
			}
			if _, err := a.ledger.RebuildTags(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("rebuilt")
			return nil
		},
	}
	check.Flags().BoolVar(&fix, "fix", false, "repair any drift")

	cmd.AddCommand(add, del, list, check)
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var profileName string
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import CSV exports using the configured profiles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := service.LoadProfiles(a.cfg.Import.Profiles)
			if err != nil {
				return err
			}
			var p service.Profile
			if profileName != "" {
				var ok bool
				if p, ok = profiles[profileName]; !ok {
					return fmt.Errorf("%w: unknown import profile %q", service.ErrValidation, profileName)
				}
			} else {
				var ok bool
				if p, ok = service.MatchProfile(profiles, args[0]); !ok {
					return fmt.Errorf("%w: no import profile matches %s; pass --profile", service.ErrValidation, args[0])
				}
			}
			res, err := a.ingest.ImportFiles(cmd.Context(), p, args...)
			if err != nil {
				return err
			}
			for _, e := range res.Errors {
				cmd.PrintErrln("skipped:", e)
			}
			cmd.Printf("imported %d, skipped %d duplicates, %d unreadable rows\n", res.Imported, res.Skipped, len(res.Errors))
			return nil
		},
	}
	cmd.Flags().StringVar(&profileName, "profile", "", "import profile name")
	return cmd
}

func newQueryCmd(a *app) *cobra.Command {
	var period, amount, description, account string
	var tags, notTags, types []string
	var txnID int64
	cmd := &cobra.Command{
		Use:       "query KIND",
		Short:     "Run a by-month, by-tag, debits or credits query",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(service.ByMonth), string(service.ByTag), string(service.Debits), string(service.Credits)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := service.ParseQueryKind(args[0])
			if err != nil {
				return err
			}
			spec := service.FilterSpec{Tags: tags, NotTags: notTags}
			if spec.Period, err = service.ParsePeriod(period, time.Now()); err != nil {
				return err
			}
			if amount != "" {
				if spec.AmountMin, spec.AmountMax, err = service.ParseAmountRange(amount); err != nil {
					return err
				}
			}
			fl := cmd.Flags()
			if fl.Changed("description") {
				spec.DescriptionContains = &description
			}
			if fl.Changed("account") {
				spec.Account = &account
			}
			if fl.Changed("id") {
				spec.TransactionID = &txnID
			}
			for _, t := range types {
				tt, err := service.ParseTransactionType(t)
				if err != nil {
					return err
				}
				spec.Types = append(spec.Types, tt)
			}
			res, err := a.ledger.RunQuery(cmd.Context(), kind, spec)
			if err != nil {
				return err
			}
			cmd.Println(a.renderer.Query(res))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&period, "period", "p", "", "date period, e.g. 2023, 2023/02, february, 2021/02/15-march")
	f.StringVar(&amount, "amount", "", "amount range MIN-MAX, ':' for open")
	f.StringVarP(&description, "description", "d", "", "case-insensitive description substring")
	f.StringVarP(&account, "account", "a", "", "account name or alias")
	f.StringSliceVarP(&tags, "tag", "t", nil, "tag prefix to include (repeatable)")
	f.StringSliceVar(&notTags, "not-tag", nil, "tag prefix to exclude (repeatable)")
	f.StringSliceVar(&types, "type", nil, "transaction type (repeatable)")
	f.Int64Var(&txnID, "id", 0, "single transaction id")
	return cmd
}

func newUndoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Undo the most recent command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			step, err := a.ledger.LastUndoStep(cmd.Context())
			if err != nil {
				return err
			}
			if step == nil {
				cmd.Println("nothing to undo")
				return nil
			}
			ok, err := a.confirm(fmt.Sprintf("Undo the results of command `%s`?", step.Name))
			if err != nil || !ok {
				return err
			}
			name, err := a.ledger.Undo(cmd.Context())
			if errors.Is(err, service.ErrNothingToUndo) {
				cmd.Println("nothing to undo")
				return nil
			}
			if err != nil {
				return err
			}
			cmd.Printf("undid %s\n", name)
			return nil
		},
	}
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete all ledger data (cannot be undone)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ok, err := a.confirm("Reset database? This deletes all data and the undo history.")
			if err != nil || !ok {
				return err
			}
			return a.maint.Reset(cmd.Context())
		},
	}
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the database location and row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.maint.Stats(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Println(a.renderer.Stats(a.cfg.Database.Path, st))
			return nil
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Inspect or write the configuration file",
		Annotations: map[string]string{skipDB: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Printf("config file: %s\ndatabase: %s\nimport profiles: %s\nundo steps kept: %d\n",
				config.Path(), a.cfg.Database.Path, a.cfg.Import.Profiles, a.cfg.Undo.MaxSteps)
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:         "init",
		Short:       "Write the current settings to the config file",
		Annotations: map[string]string{skipDB: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Save(a.cfg); err != nil {
				return err
			}
			cmd.Printf("wrote %s\n", config.Path())
			return nil
		},
	})
	return cmd
}
