package transform

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/theirongolddev/opsdash/internal/model"
)

// Item is one entity carried in both of its encodings.
type Item struct {
	ID     string
	Entity []byte // camelCase payload kept in the local cache
	Row    []byte // snake_case row sent to the remote store
}

// Table describes a remote table.
type Table struct {
	Name    string
	Columns []string
}

// Tables maps each kind to its remote table. Table names equal the kind.
var Tables = map[model.Kind]Table{
	model.KindCustomers:      {Name: string(model.KindCustomers), Columns: columnsOf(CustomerRow{})},
	model.KindAutomations:    {Name: string(model.KindAutomations), Columns: columnsOf(AutomationRow{})},
	model.KindProjects:       {Name: string(model.KindProjects), Columns: columnsOf(ProjectRow{})},
	model.KindExpenses:       {Name: string(model.KindExpenses), Columns: columnsOf(ExpenseRow{})},
	model.KindNotes:          {Name: string(model.KindNotes), Columns: columnsOf(NoteRow{})},
	model.KindPaymentHistory: {Name: string(model.KindPaymentHistory), Columns: columnsOf(PaymentHistoryRow{})},
	model.KindBudgets:        {Name: string(model.KindBudgets), Columns: columnsOf(BudgetRow{})},
}

func columnsOf(row any) []string {
	t := reflect.TypeOf(row)
	cols := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if tag != "" && tag != "-" {
			cols = append(cols, tag)
		}
	}
	return cols
}

// Encode converts typed entities into items, preserving order.
func Encode[T model.Entity, R any](entities []T, toRow func(T) R) ([]Item, error) {
	items := make([]Item, 0, len(entities))
	for _, e := range entities {
		entity, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encoding entity %s: %w", e.EntityID(), err)
		}
		row, err := json.Marshal(toRow(e))
		if err != nil {
			return nil, fmt.Errorf("encoding row %s: %w", e.EntityID(), err)
		}
		items = append(items, Item{ID: e.EntityID(), Entity: entity, Row: row})
	}
	return items, nil
}

// Items encodes the collection of the given kind.
func Items(c model.Collections, kind model.Kind) ([]Item, error) {
	switch kind {
	case model.KindCustomers:
		return Encode(c.Customers, CustomerToRow)
	case model.KindAutomations:
		return Encode(c.Automations, AutomationToRow)
	case model.KindProjects:
		return Encode(c.Projects, ProjectToRow)
	case model.KindExpenses:
		return Encode(c.Expenses, ExpenseToRow)
	case model.KindNotes:
		return Encode(c.Notes, NoteToRow)
	case model.KindPaymentHistory:
		return Encode(c.PaymentHistory, PaymentHistoryToRow)
	case model.KindBudgets:
		return Encode(c.Budgets, BudgetToRow)
	}
	return nil, fmt.Errorf("%w: %q", model.ErrUnknownKind, kind)
}

func decodeRows[R any, T model.Entity](data []byte, fromRow func(R) T, toRow func(T) R) ([]Item, error) {
	var rows []R
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decoding rows: %w", err)
	}
	entities := make([]T, 0, len(rows))
	for _, r := range rows {
		entities = append(entities, fromRow(r))
	}
	return Encode(entities, toRow)
}

// DecodeRows parses a JSON array of remote rows into items. Malformed
// numeric columns coerce to 0; a body that is not a JSON array is an error.
func DecodeRows(kind model.Kind, data []byte) ([]Item, error) {
	switch kind {
	case model.KindCustomers:
		return decodeRows(data, CustomerFromRow, CustomerToRow)
	case model.KindAutomations:
		return decodeRows(data, AutomationFromRow, AutomationToRow)
	case model.KindProjects:
		return decodeRows(data, ProjectFromRow, ProjectToRow)
	case model.KindExpenses:
		return decodeRows(data, ExpenseFromRow, ExpenseToRow)
	case model.KindNotes:
		return decodeRows(data, NoteFromRow, NoteToRow)
	case model.KindPaymentHistory:
		return decodeRows(data, PaymentHistoryFromRow, PaymentHistoryToRow)
	case model.KindBudgets:
		return decodeRows(data, BudgetFromRow, BudgetToRow)
	}
	return nil, fmt.Errorf("%w: %q", model.ErrUnknownKind, kind)
}

func reencode[T any, R any](payload []byte, toRow func(T) R) ([]byte, error) {
	var e T
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("decoding entity: %w", err)
	}
	return json.Marshal(toRow(e))
}

// RowFromEntity converts a cached entity payload into its remote row.
func RowFromEntity(kind model.Kind, payload []byte) ([]byte, error) {
	switch kind {
	case model.KindCustomers:
		return reencode(payload, CustomerToRow)
	case model.KindAutomations:
		return reencode(payload, AutomationToRow)
	case model.KindProjects:
		return reencode(payload, ProjectToRow)
	case model.KindExpenses:
		return reencode(payload, ExpenseToRow)
	case model.KindNotes:
		return reencode(payload, NoteToRow)
	case model.KindPaymentHistory:
		return reencode(payload, PaymentHistoryToRow)
	case model.KindBudgets:
		return reencode(payload, BudgetToRow)
	}
	return nil, fmt.Errorf("%w: %q", model.ErrUnknownKind, kind)
}

func decodeAll[T any](payloads [][]byte) ([]T, error) {
	out := make([]T, 0, len(payloads))
	for _, p := range payloads {
		var e T
		if err := json.Unmarshal(p, &e); err != nil {
			return nil, fmt.Errorf("decoding entity: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Assign decodes cached entity payloads into the kind's slice of c,
// replacing whatever was there.
func Assign(c *model.Collections, kind model.Kind, payloads [][]byte) error {
	var err error
	switch kind {
	case model.KindCustomers:
		c.Customers, err = decodeAll[model.Customer](payloads)
		for i := range c.Customers {
			if c.Customers[i].MaintenancePaidMonths == nil {
				c.Customers[i].MaintenancePaidMonths = []string{}
			}
		}
	case model.KindAutomations:
		c.Automations, err = decodeAll[model.Automation](payloads)
	case model.KindProjects:
		c.Projects, err = decodeAll[model.Project](payloads)
	case model.KindExpenses:
		c.Expenses, err = decodeAll[model.Expense](payloads)
	case model.KindNotes:
		c.Notes, err = decodeAll[model.Note](payloads)
	case model.KindPaymentHistory:
		c.PaymentHistory, err = decodeAll[model.PaymentHistory](payloads)
	case model.KindBudgets:
		c.Budgets, err = decodeAll[model.Budget](payloads)
	default:
		return fmt.Errorf("%w: %q", model.ErrUnknownKind, kind)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", kind, err)
	}
	return nil
}
