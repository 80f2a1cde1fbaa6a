/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/suparena/entitymap"
	"github.com/suparena/entitymap/config"
	"github.com/suparena/entitymap/engine"
	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/testmodels"
)

func newDemoCmd(load func() (*config.Config, error)) *cobra.Command {
	var showMetrics bool
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the customer scenario against the configured backend",
		Long: `Recreates the demo tables, then inserts, validates, selects, updates
and deletes a customer, printing each step. Existing demo rows are lost.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openDemoStore(cmd.Context(), load)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Setup(cmd.Context()); err != nil {
				return err
			}
			if err := runDemo(cmd.Context(), store, cmd.OutOrStdout()); err != nil {
				return err
			}
			if showMetrics {
				return printMetrics(store, cmd.OutOrStdout())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "print cache counters at the end")
	return cmd
}

func runDemo(ctx context.Context, store *entitymap.Store, out io.Writer) error {
	customers := entitymap.MustRepositoryFor[testmodels.Customer](store)

	blank := &testmodels.Customer{}
	err := customers.Insert(ctx, blank)
	if !errors.IsValidationFailure(err) {
		return fmt.Errorf("expected a validation failure, got %v", err)
	}
	for _, v := range errors.Violations(err) {
		fmt.Fprintf(out, "rejected: %s\n", v.Message)
	}

	ada := &testmodels.Customer{Name: "Ada", Country: &testmodels.Country{Code: "FR"}}
	if err := customers.Insert(ctx, ada); err != nil {
		return err
	}
	fmt.Fprintf(out, "inserted customer %d\n", ada.Id)

	found, err := customers.Filter(ctx, `Name = "Ada"`)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "selected %d customer(s) named Ada\n", len(found))

	for i := 0; i < 2; i++ {
		all, err := customers.All(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "listed %d customer(s)\n", len(all))
	}

	ada.Name = "Ada Lovelace"
	if err := customers.Update(ctx, ada, "Name"); err != nil {
		return err
	}
	fmt.Fprintf(out, "renamed customer %d\n", ada.Id)

	groups, err := store.Session().SelectGroup(ctx, customers.Type(), engine.GroupQuery{
		GroupBy:    []string{"Country"},
		Aggregates: []engine.Aggregate{{Func: engine.Count}},
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d country group(s)\n", len(groups))

	if err := customers.Delete(ctx, ada); err != nil {
		return err
	}
	err = customers.Get(ctx, &testmodels.Customer{Id: ada.Id})
	if !errors.IsNotFound(err) {
		return fmt.Errorf("expected not found after delete, got %v", err)
	}
	fmt.Fprintf(out, "deleted customer %d\n", ada.Id)
	return nil
}

func printMetrics(store *entitymap.Store, out io.Writer) error {
	if store.Cache() == nil {
		fmt.Fprintln(out, "cache disabled")
		return nil
	}
	families, err := store.Cache().Metrics().Registry().Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			label := ""
			for _, lp := range m.GetLabel() {
				label = lp.GetValue()
			}
			fmt.Fprintf(out, "%s{entity_type=%q} %g\n", mf.GetName(), label, m.GetCounter().GetValue())
		}
	}
	return nil
}
