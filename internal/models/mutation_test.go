package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestValidateUnknownType(t *testing.T) {
	m := Mutation{Type: "transaction:upsert", Data: json.RawMessage(`{}`)}
	if err := m.Validate(); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestValidateEmptyPayload(t *testing.T) {
	m := Mutation{Type: MutTransactionCreate}
	if err := m.Validate(); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestValidateTransactionCreate(t *testing.T) {
	ok := Mutation{Type: MutTransactionCreate, Data: mustJSON(t, TransactionInput{Amount: "12.50", Date: "2026-08-01"})}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid create rejected: %v", err)
	}

	noAmount := Mutation{Type: MutTransactionCreate, Data: mustJSON(t, TransactionInput{Date: "2026-08-01"})}
	if err := noAmount.Validate(); err == nil {
		t.Error("create without amount accepted")
	}

	noDate := Mutation{Type: MutTransactionCreate, Data: mustJSON(t, TransactionInput{Amount: "12.50"})}
	if err := noDate.Validate(); err == nil {
		t.Error("create without date accepted")
	}
}

func TestValidateUpdateRequiresVersionToken(t *testing.T) {
	noToken := Mutation{Type: MutTransactionUpdate, Data: mustJSON(t, TransactionInput{
		ID: "t1", Amount: "5.00", Date: "2026-08-01",
	})}
	err := noToken.Validate()
	if err == nil {
		t.Fatal("update without version token accepted")
	}
	if !strings.Contains(err.Error(), "updated_at") {
		t.Errorf("error should name the missing token: %v", err)
	}

	withToken := Mutation{Type: MutTransactionUpdate, Data: mustJSON(t, TransactionInput{
		ID: "t1", Amount: "5.00", Date: "2026-08-01", UpdatedAt: "2026-08-01T10:00:00Z",
	})}
	if err := withToken.Validate(); err != nil {
		t.Errorf("valid update rejected: %v", err)
	}
}

func TestValidateDelete(t *testing.T) {
	noToken := Mutation{Type: MutTransactionDelete, Data: mustJSON(t, DeleteInput{ID: "t1"})}
	if err := noToken.Validate(); err == nil {
		t.Error("delete without version token accepted")
	}

	// Temp ids never reach the server, so no token is required.
	tempID := Mutation{Type: MutTransactionDelete, Data: mustJSON(t, DeleteInput{ID: "temp-abc123"})}
	if err := tempID.Validate(); err != nil {
		t.Errorf("temp-id delete rejected: %v", err)
	}

	noID := Mutation{Type: MutCategoryDelete, Data: mustJSON(t, DeleteInput{UpdatedAt: "x"})}
	if err := noID.Validate(); err == nil {
		t.Error("delete without id accepted")
	}
}

func TestValidateCategory(t *testing.T) {
	ok := Mutation{Type: MutCategoryCreate, Data: mustJSON(t, CategoryInput{Name: "food"})}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid category create rejected: %v", err)
	}
	noName := Mutation{Type: MutCategoryCreate, Data: mustJSON(t, CategoryInput{Type: "expense"})}
	if err := noName.Validate(); err == nil {
		t.Error("category create without name accepted")
	}
	updNoToken := Mutation{Type: MutCategoryUpdate, Data: mustJSON(t, CategoryInput{ID: "c1", Name: "food"})}
	if err := updNoToken.Validate(); err == nil {
		t.Error("category update without version token accepted")
	}
}

func TestValidateBudgetSave(t *testing.T) {
	ok := Mutation{Type: MutBudgetSave, Data: mustJSON(t, BudgetSaveInput{CategoryID: "c1", Month: "2026-08", Limit: "300"})}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid budget save rejected: %v", err)
	}
	for _, in := range []BudgetSaveInput{
		{Month: "2026-08", Limit: "300"},
		{CategoryID: "c1", Limit: "300"},
		{CategoryID: "c1", Month: "2026-08"},
	} {
		m := Mutation{Type: MutBudgetSave, Data: mustJSON(t, in)}
		if err := m.Validate(); err == nil {
			t.Errorf("incomplete budget save accepted: %+v", in)
		}
	}
}

func TestEntityID(t *testing.T) {
	m := Mutation{Type: MutTransactionDelete, Data: json.RawMessage(`{"id":"t9"}`)}
	if got := m.EntityID(); got != "t9" {
		t.Errorf("EntityID = %q, want t9", got)
	}
	m = Mutation{Type: MutBudgetSave, Data: json.RawMessage(`{"category_id":"c1"}`)}
	if got := m.EntityID(); got != "" {
		t.Errorf("EntityID = %q, want empty", got)
	}
}

func TestWithAndWithoutID(t *testing.T) {
	m := Mutation{Type: MutTransactionCreate, Data: json.RawMessage(`{"amount":"5.00","date":"2026-08-01"}`)}

	withID, err := m.WithID("temp-ff0011")
	if err != nil {
		t.Fatal(err)
	}
	m.Data = withID
	if m.EntityID() != "temp-ff0011" {
		t.Fatalf("id not injected: %s", m.Data)
	}

	withoutID, err := m.WithoutID()
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]any
	if err := json.Unmarshal(withoutID, &fields); err != nil {
		t.Fatal(err)
	}
	if _, present := fields["id"]; present {
		t.Error("id survived WithoutID")
	}
	if fields["amount"] != "5.00" {
		t.Errorf("other fields lost: %v", fields)
	}
}

func TestTempIDs(t *testing.T) {
	id, err := NewTempID()
	if err != nil {
		t.Fatal(err)
	}
	if !IsTempID(id) {
		t.Errorf("minted id %q not recognised as temp", id)
	}
	if IsTempID("a1b2c3") {
		t.Error("server id recognised as temp")
	}

	other, _ := NewTempID()
	if id == other {
		t.Error("two minted temp ids collided")
	}
}
