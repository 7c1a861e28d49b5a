package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/BearBump/CarrierBox/config"
	"github.com/BearBump/CarrierBox/internal/services/discrepancy"
	"github.com/BearBump/CarrierBox/internal/storage/pgreports"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.yaml.in/yaml/v4"
)

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Compare an invoice file with a charge file and print the discrepancies",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "invoices",
				Usage:    "JSON array of invoice lines (trackingNumber, billedAmount, billedWeight, zone)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "charges",
				Usage:    "JSON array of charge lines (trackingNumber, amount, weight, zone)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output format: table, json, yaml",
				Value:   "table",
			},
			&cli.StringFlag{
				Name:  "save-batch",
				Usage: "store the findings in postgres under this batch id (needs --config)",
			},
		},
		Action: func(c *cli.Context) error {
			invoices, err := loadFile(c.String("invoices"), discrepancy.LoadInvoices)
			if err != nil {
				return err
			}
			charges, err := loadFile(c.String("charges"), discrepancy.LoadCharges)
			if err != nil {
				return err
			}

			rep := discrepancy.Reconcile(invoices, charges)

			if batch := c.String("save-batch"); batch != "" {
				n, err := saveReport(c, batch, rep)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.ErrWriter, "saved %d new discrepancies to batch %s\n", n, batch)
			}

			return writeReport(c.App.Writer, c.String("output"), rep)
		},
	}
}

func loadFile(path string, load func(io.Reader) ([]discrepancy.LineItem, error)) ([]discrepancy.LineItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open line items")
	}
	defer f.Close()

	items, err := load(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return items, nil
}

func saveReport(c *cli.Context, batch string, rep discrepancy.Report) (int, error) {
	cfgPath := c.String("config")
	if cfgPath == "" {
		return 0, errors.New("--save-batch needs --config (or configPath env var)")
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return 0, err
	}
	st, err := pgreports.New(cfg.Database.PostgresConnString())
	if err != nil {
		return 0, err
	}
	defer st.Close()

	return st.SaveDiscrepancies(c.Context, batch, rep.Discrepancies)
}

func writeReport(w io.Writer, format string, rep discrepancy.Report) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "yaml":
		b, err := yaml.Marshal(rep)
		if err != nil {
			return errors.Wrap(err, "marshal yaml")
		}
		_, err = w.Write(b)
		return err
	case "table", "":
		return writeTable(w, rep)
	default:
		return errors.Errorf("unknown output format %q", format)
	}
}

func writeTable(w io.Writer, rep discrepancy.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TRACKING NUMBER\tKIND\tMESSAGE")
	for _, d := range rep.Discrepancies {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.TrackingNumber, d.Kind, d.Message)
	}
	for _, it := range rep.UnmatchedInvoices {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", it.TrackingNumber, "unmatched", "invoice line without a charge")
	}
	for _, it := range rep.UnmatchedCharges {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", it.TrackingNumber, "unmatched", "charge line without an invoice")
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nmatched: %d, discrepancies: %d, unmatched invoices: %d, unmatched charges: %d\n",
		rep.Matched, len(rep.Discrepancies), len(rep.UnmatchedInvoices), len(rep.UnmatchedCharges))
	return err
}
