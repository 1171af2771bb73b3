package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mikey/mail-triage/internal/core"
)

var batchLimit int

var batchCmd = &cobra.Command{
	Use:   "batch <emails.json>",
	Short: "Classify exported email records and print CSV",
	Long: `Classify a JSON export of email records. The file may hold a list of
records, an object with an "emails" list, or an object keyed by message ID.

Examples:
  triage-cli batch processed_emails.json --limit 50 > predictions.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 200, "Maximum number of records to classify")
}

var csvHeader = []string{"id", "from", "subject", "is_vendor", "subject_category", "needs_response_pred"}

func runBatch(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}
	emails, err := decodeRecords(data)
	if err != nil {
		return err
	}

	return withContainer(func(service *core.TriageService) error {
		return writeCSV(cmd.OutOrStdout(), service.Classifier(), emails, batchLimit)
	})
}

// decodeRecords accepts a list of records, {"emails": [...]} or an object of
// records keyed by ID. Keyed records are returned in key order.
func decodeRecords(data []byte) ([]*core.Email, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}

	switch v := doc.(type) {
	case []any:
		return fromList(v), nil
	case map[string]any:
		if list, ok := v["emails"].([]any); ok {
			return fromList(list), nil
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		emails := make([]*core.Email, 0, len(keys))
		for _, k := range keys {
			m, ok := v[k].(map[string]any)
			if !ok {
				continue
			}
			email := core.EmailFromMap(m)
			if email.ID == "" {
				email.ID = k
			}
			emails = append(emails, email)
		}
		return emails, nil
	default:
		return nil, errors.New("records must be a JSON list or object")
	}
}

func fromList(list []any) []*core.Email {
	emails := make([]*core.Email, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			emails = append(emails, core.EmailFromMap(m))
		}
	}
	return emails
}

// writeCSV classifies up to limit emails and writes one row per email.
// Unknown reply predictions are left empty.
func writeCSV(w io.Writer, classifier *core.Classifier, emails []*core.Email, limit int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	if limit > 0 && len(emails) > limit {
		emails = emails[:limit]
	}
	for _, email := range emails {
		result := classifier.Classify(email)
		prediction := ""
		if b := result.NeedsReply.Bool(); b != nil {
			prediction = strconv.FormatBool(*b)
		}
		row := []string{
			email.ID,
			email.From,
			email.Subject,
			strconv.FormatBool(result.IsVendorMatch),
			result.SubjectCategory,
			prediction,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
