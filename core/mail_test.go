package core_test

import (
	"strings"
	"testing"

	"github.com/rumboapp/rumbo/core"
	testutil "github.com/rumboapp/rumbo/tests"
)

func TestParseEmailTemplates(t *testing.T) {
	conf := testutil.NewTestConfig()
	core.ParseEmailTemplates(conf, testutil.Logger{})

	// every named template pairs with the embedded _base layout
	msg := &core.EmailMessage{
		Subject:      "Bienvenido",
		TemplateName: "welcome",
		TemplateData: struct {
			Nombre string
			Area   string
		}{"Juana Pérez", "Sistemas"},
	}
	if err := msg.Render(conf); err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if !strings.Contains(msg.TextContent, "Sistemas") {
		t.Errorf("TextContent = %q, want it to mention the area", msg.TextContent)
	}
	if !strings.Contains(msg.TextContent, conf.FrontendBaseURL) {
		t.Errorf("TextContent = %q, want it to contain %q", msg.TextContent, conf.FrontendBaseURL)
	}
	if msg.HTMLContent == "" {
		t.Error("HTMLContent is empty")
	}
	if !msg.HasContent() {
		t.Error("HasContent() = false after render")
	}
}
