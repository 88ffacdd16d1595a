// File: cmd/diagnostic/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"github.com/iyunix/go-mechanic/internal/config"
	"github.com/iyunix/go-mechanic/internal/services"
	"github.com/iyunix/go-mechanic/internal/services/diagnosis"
)

const usage = `usage:
  diagnostic list                 show every provider and whether it is reachable
  diagnostic test <key>           run a canned diagnosis against one provider
  diagnostic cost <key> [tokens]  estimate the cost of one request`

var errUsage = errors.New(usage)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := services.NewLogger("diagnostic")
	factory, err := diagnosis.NewFactory(cfg.DiagnosisSettings(), diagnosis.DefaultRegistry(), logger)
	if err != nil {
		log.Fatalf("Failed to initialize provider factory: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, factory, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, factory *diagnosis.Factory, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "list":
		return listProviders(ctx, factory, out)
	case "test":
		if len(args) != 2 {
			return errUsage
		}
		return testProvider(ctx, factory, args[1], out)
	case "cost":
		if len(args) < 2 || len(args) > 3 {
			return errUsage
		}
		tokens := 0
		if len(args) == 3 {
			n, err := strconv.Atoi(args[2])
			if err != nil || n < 0 {
				return fmt.Errorf("invalid token count %q", args[2])
			}
			tokens = n
		}
		return estimateCost(factory, args[1], tokens, out)
	default:
		return errUsage
	}
}

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func listProviders(ctx context.Context, factory *diagnosis.Factory, out io.Writer) error {
	statuses := factory.ListAvailableProviders(ctx)

	table := newTable(out, "Key", "Name", "Available", "Model", "Cost/1K", "Vision", "Note")
	for _, key := range sortedKeys(statuses) {
		s := statuses[key]
		row := []string{key, s.Name, strconv.FormatBool(s.Available), "", "", "", s.Error}
		if s.Config != nil {
			row[3] = s.Config.Model
			row[4] = fmt.Sprintf("$%.4f", s.Config.CostPer1000Tokens)
			row[5] = strconv.FormatBool(s.Config.SupportsVision)
		}
		if key == factory.DefaultProvider() {
			row[0] += " (default)"
		}
		table.Append(row)
	}
	table.Render()
	return nil
}

func testProvider(ctx context.Context, factory *diagnosis.Factory, key string, out io.Writer) error {
	if !factory.Has(key) {
		return fmt.Errorf("unknown provider %q", key)
	}

	report := factory.TestProvider(ctx, key)
	table := newTable(out, "Field", "Value")
	table.Append([]string{"provider", report.Provider})
	table.Append([]string{"success", strconv.FormatBool(report.Success)})
	table.Append([]string{"elapsed", fmt.Sprintf("%.2fs", report.ElapsedSeconds)})
	if report.Success {
		table.Append([]string{"issue", report.Issue})
		table.Append([]string{"confidence", strconv.Itoa(report.Confidence)})
	} else {
		table.Append([]string{"error", report.Error})
	}
	table.Render()

	if !report.Success {
		return fmt.Errorf("provider %s failed its self-test", key)
	}
	return nil
}

func estimateCost(factory *diagnosis.Factory, key string, tokens int, out io.Writer) error {
	if !factory.Has(key) {
		return fmt.Errorf("unknown provider %q", key)
	}
	if tokens == 0 {
		tokens = diagnosis.DefaultEstimatedTokens
	}

	table := newTable(out, "Provider", "Tokens", "Estimated Cost")
	table.Append([]string{key, strconv.Itoa(tokens), fmt.Sprintf("$%.4f", factory.EstimateCost(key, tokens))})
	table.Render()
	return nil
}

func sortedKeys(m map[string]diagnosis.ProviderStatus) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
