package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/itsupport/csreport/internal/api"
	"github.com/itsupport/csreport/internal/report"
	"github.com/itsupport/csreport/internal/storage"
)

// --- submit ---

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a customer visit report",
	Long: `Submit a customer visit report.

Examples:
  csreport submit --file ./visit.json
  csreport submit --company "Acme Ltd" --address "12 Harbor Rd" --contact "Li Wei" \
    --mobile 13800138000 --company-size 50-100 --office-size 200sqm \
    --business "Import/export" --products Electronics --needs "IT outsourcing" \
    --code ACMEVISIT`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		var sub report.Submission
		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			if err := json.Unmarshal(data, &sub); err != nil {
				return fmt.Errorf("parsing %s: %w", file, err)
			}
		}

		applyFlag := func(name string, dst *string) {
			if v, _ := cmd.Flags().GetString(name); v != "" {
				*dst = v
			}
		}
		applyFlag("company", &sub.CompanyName)
		applyFlag("address", &sub.Address)
		applyFlag("phone", &sub.Phone)
		applyFlag("website", &sub.Website)
		applyFlag("contact", &sub.ContactPerson)
		applyFlag("mobile", &sub.Mobile)
		applyFlag("wechat", &sub.Wechat)
		applyFlag("company-size", &sub.CompanySize)
		applyFlag("office-size", &sub.OfficeSize)
		applyFlag("business", &sub.MainBusiness)
		applyFlag("products", &sub.Products)
		applyFlag("needs", &sub.ServiceNeeds)
		applyFlag("chat", &sub.ChatRecords)
		applyFlag("code", &sub.CustomCode)
		applyFlag("date", &sub.ReportDate)

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), api.SubmitPath, sub)
		if err != nil {
			return err
		}

		var result struct {
			Success   bool   `json:"success"`
			Message   string `json:"message"`
			QueryCode string `json:"queryCode"`
		}
		if err := json.Unmarshal(resp.Body, &result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		if !result.Success {
			return fmt.Errorf("server rejected request: %s", result.Message)
		}

		printSuccess("Report submitted")
		printField("Query code", "%s", result.QueryCode)
		return nil
	},
}

func init() {
	submitCmd.Flags().String("file", "", "JSON file with the report payload")
	submitCmd.Flags().String("company", "", "company name")
	submitCmd.Flags().String("address", "", "company address")
	submitCmd.Flags().String("phone", "", "landline phone")
	submitCmd.Flags().String("website", "", "company website")
	submitCmd.Flags().String("contact", "", "contact person")
	submitCmd.Flags().String("mobile", "", "contact mobile number")
	submitCmd.Flags().String("wechat", "", "contact wechat")
	submitCmd.Flags().String("company-size", "", "company headcount range")
	submitCmd.Flags().String("office-size", "", "office size")
	submitCmd.Flags().String("business", "", "main business")
	submitCmd.Flags().String("products", "", "main products")
	submitCmd.Flags().String("needs", "", "service needs")
	submitCmd.Flags().String("chat", "", "chat records")
	submitCmd.Flags().String("code", "", "custom query code (6-12 uppercase letters or digits)")
	submitCmd.Flags().String("date", "", "report date (YYYY-MM-DD, defaults to today)")
}

// --- query ---

var queryCmd = &cobra.Command{
	Use:   "query <code>",
	Short: "Look up a report by its query code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), api.QueryPath, codeQuery(args[0]))
		if err != nil {
			return err
		}

		var rec storage.Report
		if _, err := decodeJSON(resp, &rec); err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}

		printReport(rec)
		return nil
	},
}

func init() {
	queryCmd.Flags().Bool("json", false, "print the raw report as JSON")
}

func printReport(r storage.Report) {
	fmt.Println(colorize(colorBold, r.CompanyName))
	printField("Query code", "%s", r.LookupCode)
	if r.CustomLookupCode != "" && r.CustomLookupCode != r.LookupCode {
		printField("Custom code", "%s", r.CustomLookupCode)
	}
	printField("Address", "%s", r.Address)
	printField("Contact", "%s (%s)", r.ContactPerson, r.Mobile)
	if r.Phone != "" {
		printField("Phone", "%s", r.Phone)
	}
	if r.Website != "" {
		printField("Website", "%s", r.Website)
	}
	if r.Wechat != "" {
		printField("WeChat", "%s", r.Wechat)
	}
	printField("Company size", "%s", r.CompanySize)
	printField("Office size", "%s", r.OfficeSize)
	printField("Main business", "%s", r.MainBusiness)
	printField("Products", "%s", r.Products)
	printField("Service needs", "%s", r.ServiceNeeds)
	if r.ChatRecords != "" {
		printField("Chat records", "%s", r.ChatRecords)
	}
	printField("Report date", "%s", r.ReportDate)
}

// --- email ---

var emailCmd = &cobra.Command{
	Use:   "email <code> <recipient>",
	Short: "Email a report to a recipient",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, recipient := args[0], args[1]

		req := map[string]any{
			"code": code,
			"to":   recipient,
		}

		if pdfPath, _ := cmd.Flags().GetString("pdf"); pdfPath != "" {
			data, err := os.ReadFile(pdfPath)
			if err != nil {
				return fmt.Errorf("reading pdf: %w", err)
			}
			req["pdf"] = base64.StdEncoding.EncodeToString(data)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), api.EmailPath, req)
		if err != nil {
			return err
		}
		if _, err := decodeJSON(resp, nil); err != nil {
			return err
		}

		printSuccess("Report %s emailed to %s", code, recipient)
		return nil
	},
}

func init() {
	emailCmd.Flags().String("pdf", "", "PDF file to attach")
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all submitted reports with summary stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), api.AdminReportsPath, "")
		if err != nil {
			return err
		}

		var result struct {
			Success bool             `json:"success"`
			Message string           `json:"message"`
			Data    []storage.Report `json:"data"`
			Stats   api.Stats        `json:"stats"`
		}
		if err := json.Unmarshal(resp.Body, &result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		if !result.Success {
			return fmt.Errorf("server rejected request: %s", result.Message)
		}

		if len(result.Data) == 0 {
			fmt.Println("No reports found.")
			return nil
		}

		for _, r := range result.Data {
			fmt.Printf("%s  %s  %s\n",
				colorize(colorCyan, r.LookupCode),
				r.ReportDate,
				r.CompanyName,
			)
		}
		fmt.Printf("\n%d total, %d today, %d this week, %d this month\n",
			result.Stats.Total, result.Stats.Today, result.Stats.ThisWeek, result.Stats.ThisMonth)
		return nil
	},
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all reports as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), api.AdminExportPath, "")
		if err != nil {
			return err
		}

		var writer io.Writer = os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			writer = f
		}

		if _, err := writer.Write(resp.Body); err != nil {
			return fmt.Errorf("writing export: %w", err)
		}
		if output != "" {
			printSuccess("Reports exported to %s", output)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("output", "", "output file path (default: stdout)")
}
