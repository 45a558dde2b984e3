package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/studiowebux/chatbench/internal/fixture"
)

// ScenariosOptions configures the scenarios command
type ScenariosOptions struct {
	Common
	File  string
	Kinds []string
	Run   string
}

// Scenarios lists the scenarios of a suite without sending anything
func Scenarios(opts ScenariosOptions) error {
	suite, err := loadSuite(opts.File)
	if err != nil {
		return err
	}

	kinds := make([]fixture.Kind, 0, len(opts.Kinds))
	for _, raw := range opts.Kinds {
		kind, err := fixture.ParseKind(raw)
		if err != nil {
			return err
		}
		kinds = append(kinds, kind)
	}
	selected, err := fixture.Filter(suite.Scenarios, kinds, opts.Run)
	if err != nil {
		return err
	}

	out := opts.out()
	table := tablewriter.NewWriter(out)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"#", "Name", "Kind", "Per model", "Expect", "Description"})
	for i, sc := range selected {
		perModel := "yes"
		if sc.ModelIndependent {
			perModel = "no"
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			sc.Name,
			string(sc.Kind),
			perModel,
			describeExpectation(sc),
			sc.Description,
		})
	}
	table.Render()

	fmt.Fprintf(out, "%d of %d scenarios selected\n", len(selected), len(suite.Scenarios))
	if len(selected) == 0 && opts.Run != "" {
		if names := fixture.Suggest(suite.Scenarios, opts.Run, 3); len(names) > 0 {
			fmt.Fprintf(out, "Did you mean: %s\n", strings.Join(names, ", "))
		}
	}
	if len(suite.Models) > 0 {
		fmt.Fprintf(out, "Suite models: %v\n", suite.Models)
	}
	return nil
}

func describeExpectation(sc fixture.Scenario) string {
	exp := sc.Expect
	var desc string
	switch {
	case exp.Status != 0:
		desc = strconv.Itoa(exp.Status)
	case exp.StatusClass != "":
		desc = exp.StatusClass
	default:
		desc = "2xx"
	}
	switch {
	case exp.NoContent:
		desc += ", no content"
	case exp.ContentNotEmpty || exp.ContentJSON || len(exp.ContentContains) > 0:
		desc += ", content"
	}
	if exp.Schema != "" {
		desc += ", schema " + exp.Schema
	}
	return desc
}
