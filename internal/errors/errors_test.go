package errors

import (
	"encoding/json"
	"io"
	"slices"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "update loop",
			code:    CodeUpdateLoop,
			wantMsg: "Runaway update loop",
			wantCat: CategoryScheduler,
		},
		{
			name:    "frozen write",
			code:    CodeFrozenWrite,
			wantMsg: "Write to frozen key ignored",
			wantCat: CategoryRuntime,
		},
		{
			name:    "config error",
			code:    CodeUnknownStore,
			wantMsg: "Unknown timeline store",
			wantCat: CategoryConfig,
		},
		{
			name:    "storage error",
			code:    CodeTimelineNotFound,
			wantMsg: "Timeline not found",
			wantCat: CategoryStorage,
		},
		{
			name:    "unknown code",
			code:    "R999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryCLI, "unknown scenario %q", "loop")
	if err.Message != `unknown scenario "loop"` {
		t.Errorf("Message = %q, want %q", err.Message, `unknown scenario "loop"`)
	}
	if err.Category != CategoryCLI {
		t.Errorf("Category = %q, want %q", err.Category, CategoryCLI)
	}
}

func TestDiagnostic_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Diagnostic
		want string
	}{
		{"code only", New(CodeInvalidPath), "R002: Invalid watch path"},
		{"with subject", New(CodeInvalidPath).WithSubject(`"a b"`), `R002: Invalid watch path: "a b"`},
		{"without code", &Diagnostic{Message: "test error"}, "test error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDiagnostic_Builders(t *testing.T) {
	err := New(CodeUpdateLoop).
		WithSubject("count").
		WithSuggestion("Guard the write").
		WithExample("if v != old { obj.Set(k, v) }").
		WithDetail("Custom detail")

	if err.Subject != "count" {
		t.Errorf("Subject = %q, want %q", err.Subject, "count")
	}
	if err.Suggestion != "Guard the write" {
		t.Errorf("Suggestion = %q, want %q", err.Suggestion, "Guard the write")
	}
	if err.Example == "" {
		t.Error("Example should be set")
	}
	if err.Detail != "Custom detail" {
		t.Errorf("Detail = %q, want %q", err.Detail, "Custom detail")
	}
}

func TestDiagnostic_Wrap(t *testing.T) {
	inner := New(CodeCallback)
	outer := New(CodeHook).Wrap(inner)

	if outer.Wrapped != inner {
		t.Error("Wrapped error mismatch")
	}
	if outer.Unwrap() != inner {
		t.Error("Unwrap() should return wrapped error")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, CodeStoreUnavailable) != nil {
		t.Error("FromError(nil, ...) should return nil")
	}

	d := New(CodeTimelineNotFound)
	if FromError(d, CodeStoreUnavailable) != d {
		t.Error("FromError should return a Diagnostic as-is")
	}

	stdErr := &testError{msg: "connection refused"}
	result := FromError(stdErr, CodeStoreUnavailable)
	if result.Wrapped != stdErr {
		t.Error("Standard error should be wrapped")
	}
	if result.Code != CodeStoreUnavailable {
		t.Errorf("Code = %q, want %q", result.Code, CodeStoreUnavailable)
	}
}

type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New(CodeUpdateLoop).
		WithSubject(`watcher "count"`).
		WithSuggestion("Guard the write").
		WithExample("if v != old { obj.Set(k, v) }").
		Wrap(&testError{msg: "boom"})

	formatted := err.Format()

	for _, want := range []string{
		"ERROR R001: Runaway update loop",
		`watcher "count"`,
		"Cause: boom",
		"Hint: Guard the write",
		"Example:",
		"Learn more: " + docBase + "R001",
	} {
		if !strings.Contains(formatted, want) {
			t.Errorf("Format() missing %q:\n%s", want, formatted)
		}
	}

	if !strings.Contains(err.FormatWarning(), "WARN R001") {
		t.Error("FormatWarning should use the warning header")
	}
}

func TestFormatCompact(t *testing.T) {
	err := New(CodeFrozenWrite).WithSubject("id")
	want := "R005: Write to frozen key ignored: id"
	if got := err.FormatCompact(); got != want {
		t.Errorf("FormatCompact() = %q, want %q", got, want)
	}
}

func TestMarshalJSON(t *testing.T) {
	err := New(CodeInvalidPath).WithSubject("a b").Wrap(&testError{msg: "bad"})

	data, jerr := json.Marshal(err)
	if jerr != nil {
		t.Fatalf("Marshal: %v", jerr)
	}

	var got map[string]any
	if jerr := json.Unmarshal(data, &got); jerr != nil {
		t.Fatalf("Unmarshal: %v", jerr)
	}
	if got["code"] != "R002" {
		t.Errorf("code = %v, want R002", got["code"])
	}
	if got["category"] != "runtime" {
		t.Errorf("category = %v, want runtime", got["category"])
	}
	if got["subject"] != "a b" {
		t.Errorf("subject = %v, want %q", got["subject"], "a b")
	}
	if got["cause"] != "bad" {
		t.Errorf("cause = %v, want bad", got["cause"])
	}
}

func TestGetAllCodes(t *testing.T) {
	codes := GetAllCodes()
	if len(codes) == 0 {
		t.Fatal("GetAllCodes() should return codes")
	}
	if !slices.IsSorted(codes) {
		t.Error("GetAllCodes() should be sorted")
	}
	if !slices.Contains(codes, CodeUpdateLoop) {
		t.Error("R001 should be in the codes list")
	}
}

func TestGetTemplate(t *testing.T) {
	template, ok := GetTemplate(CodeNextTick)
	if !ok {
		t.Fatal("R008 should exist")
	}
	if template.Message != "nextTick callback failed" {
		t.Error("Template message mismatch")
	}

	if _, ok := GetTemplate("R999"); ok {
		t.Error("R999 should not exist")
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("short text", 100)
	if len(got) != 1 || got[0] != "short text" {
		t.Errorf("wrapText short text: got %v", got)
	}

	got = wrapText("this is a longer text that should be wrapped", 20)
	if len(got) != 3 {
		t.Errorf("wrapText long text: expected 3 lines, got %d: %v", len(got), got)
	}

	if got := wrapText("", 10); len(got) != 0 {
		t.Errorf("wrapText empty: expected empty, got %v", got)
	}
}

func TestColorFunctions(t *testing.T) {
	EnableColors()
	if !strings.Contains(red("test"), "\033[31m") {
		t.Error("red should contain ANSI code when colors enabled")
	}

	DisableColors()
	if strings.Contains(red("test"), "\033[") {
		t.Error("red should not contain ANSI code when colors disabled")
	}
	EnableColors()
}

func TestFprint(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var b strings.Builder
	Fprint(&b, New(CodeHook))
	if !strings.Contains(b.String(), "R007") {
		t.Errorf("Fprint diagnostic = %q", b.String())
	}

	b.Reset()
	Fprint(&b, &testError{msg: "plain"})
	if !strings.Contains(b.String(), "ERROR: plain") {
		t.Errorf("Fprint plain = %q", b.String())
	}

	Fprint(io.Discard, New(CodeHook))
}
