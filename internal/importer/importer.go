package importer

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"

	"xmlport/internal/config"
	"xmlport/internal/record"
	"xmlport/internal/schema"
	"xmlport/internal/store"
	"xmlport/internal/xmlutil"
)

// ErrFormat marks an unparsable or structurally invalid document. Format
// errors are fatal to the whole run and happen before any write.
var ErrFormat = errors.New("invalid document format")

// RunContext carries the explicit state of one import run: the importing
// user, the run clock, the shared store handle, and the read-only option
// set. It replaces any ambient process-wide lookups so runs are
// deterministic under test.
type RunContext struct {
	UserID  int64
	Now     time.Time
	Options config.Options
}

// Importer drives one document through extract, resolve, and write,
// record by record in document order. Later records may depend on ids
// created by earlier ones, so there is no fan-out.
type Importer struct {
	store *store.Store
	res   *Resolver
	w     *Writer
	hooks *Hooks
	log   zerolog.Logger
}

func New(s *store.Store, hooks *Hooks, log zerolog.Logger) *Importer {
	if hooks == nil {
		hooks = NewHooks()
	}
	return &Importer{
		store: s,
		res:   NewResolver(s, log),
		w:     NewWriter(s, log),
		hooks: hooks,
		log:   log.With().Str("component", "importer").Logger(),
	}
}

// Run imports one document. The returned report accumulates per-record
// outcomes; a non-nil error means the run aborted before any write
// (format error), not that individual records failed.
func (im *Importer) Run(ctx context.Context, data []byte, rc *RunContext) (*Report, error) {
	if rc.Now.IsZero() {
		rc.Now = time.Now()
	}
	report := NewReport()
	report.Started = rc.Now
	log := im.log.With().Str("run_id", report.RunID).Logger()

	data, err := decompress(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if data, err = im.hooks.runBeforeParse(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	doc, err := parse(data)
	if err != nil {
		return nil, err
	}
	if doc, err = im.hooks.runBeforeImport(doc); err != nil || doc == nil {
		if err == nil {
			err = errors.New("document discarded by hook")
		}
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: empty document", ErrFormat)
	}

	for _, ent := range schema.ImportOrder {
		mode := rc.Options.ModeFor(ent.Kind)
		if mode == 0 {
			log.Debug().Str("kind", ent.Kind).Msg("kind skipped by options")
			continue
		}
		for _, el := range root.SelectElements(ent.Kind) {
			im.importOne(ctx, ent, el, rc, report, log)
		}
	}

	log.Info().
		Int("imported", report.Imported).
		Int("updated", report.Updated).
		Int("failed", report.Failed).
		Msg("run finished")
	return report, nil
}

// importOne processes a single record element. Failures are reported and
// the run moves on; one malformed record never blocks the rest.
func (im *Importer) importOne(ctx context.Context, ent *schema.Entity, el *etree.Element, rc *RunContext, report *Report, log zerolog.Logger) {
	rec := Extract(el)
	name := displayName(rec)

	ApplyDefaults(ent, rec)
	if err := im.res.Resolve(ctx, ent, rec, rc); err != nil {
		log.Error().Err(err).Str("kind", ent.Kind).Msg("resolve failed")
		report.RecordFailed(ent.Kind, name, err)
		return
	}

	id, created, err := im.w.Write(ctx, ent, rec, rc.Options.KeepID)
	if err != nil {
		log.Error().Err(err).Str("kind", ent.Kind).Msg("write failed")
		report.RecordFailed(ent.Kind, name, err)
		return
	}
	if created {
		report.RecordImported(ent.Kind, name)
	} else {
		report.RecordUpdated(ent.Kind, name)
	}
	log.Debug().Str("kind", ent.Kind).Int64("id", id).Bool("created", created).Msg("record written")

	im.hooks.runAfterSave(ent.Kind, rec)
}

// parse turns the raw payload into a navigable document. Leading junk
// before the XML declaration is dropped and illegal code points are
// replaced before parsing, so exports that crossed lossy transports still
// load.
func parse(data []byte) (*etree.Document, error) {
	if i := bytes.Index(data, []byte("<?xml")); i > 0 {
		data = data[i:]
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xmlutil.Sanitize(string(data))); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return doc, nil
}

// decompress transparently unwraps gzip-compressed payloads.
func decompress(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// displayName picks the most human-meaningful field for report messages.
func displayName(rec *record.Record) string {
	for _, k := range []string{"title", "name", "username", "subject", "path", "alias"} {
		if s := rec.GetString(k); s != "" {
			return s
		}
	}
	if id := rec.GetString("id"); id != "" {
		return "#" + id
	}
	return "(unnamed)"
}
