package importer

import (
	"github.com/beevik/etree"

	"xmlport/internal/record"
)

// Extension points invoked at fixed pipeline stages. A hook may rewrite
// its payload; returning an error, or a nil document from a
// before-import hook, aborts the run with a format error before any
// record is written.
type (
	BeforeParseFunc  func(raw []byte) ([]byte, error)
	BeforeImportFunc func(doc *etree.Document) (*etree.Document, error)
	AfterSaveFunc    func(kind string, rec *record.Record)
)

// Hooks is the registered set of extension points for a run.
type Hooks struct {
	beforeParse  []BeforeParseFunc
	beforeImport []BeforeImportFunc
	afterSave    []AfterSaveFunc
}

func NewHooks() *Hooks {
	return &Hooks{}
}

func (h *Hooks) OnBeforeParse(fn BeforeParseFunc)   { h.beforeParse = append(h.beforeParse, fn) }
func (h *Hooks) OnBeforeImport(fn BeforeImportFunc) { h.beforeImport = append(h.beforeImport, fn) }
func (h *Hooks) OnAfterSave(fn AfterSaveFunc)       { h.afterSave = append(h.afterSave, fn) }

func (h *Hooks) runBeforeParse(raw []byte) ([]byte, error) {
	for _, fn := range h.beforeParse {
		var err error
		raw, err = fn(raw)
		if err != nil {
			return nil, err
		}
	}
	return raw, nil
}

func (h *Hooks) runBeforeImport(doc *etree.Document) (*etree.Document, error) {
	for _, fn := range h.beforeImport {
		var err error
		doc, err = fn(doc)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, nil
		}
	}
	return doc, nil
}

func (h *Hooks) runAfterSave(kind string, rec *record.Record) {
	for _, fn := range h.afterSave {
		fn(kind, rec)
	}
}
