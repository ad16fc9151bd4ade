package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-audit/internal/ocr"
	"github.com/sells-group/invoice-audit/internal/pipeline"
	"github.com/sells-group/invoice-audit/internal/qa"
	"github.com/sells-group/invoice-audit/internal/report"
	"github.com/sells-group/invoice-audit/internal/rules"
	"github.com/sells-group/invoice-audit/internal/store"
	"github.com/sells-group/invoice-audit/internal/structurer"
	"github.com/sells-group/invoice-audit/internal/watcher"
	anthropicpkg "github.com/sells-group/invoice-audit/pkg/anthropic"
	"github.com/sells-group/invoice-audit/pkg/erp"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "invoice-audit.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// env bundles the pipeline with every collaborator a command needs.
type env struct {
	Store    store.Store
	Reports  *report.Store
	Watcher  *watcher.Watcher
	Pipeline *pipeline.Pipeline
	QA       *qa.Assistant
}

func (e *env) Close() {
	_ = e.Store.Close()
}

func buildEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	rulesCfg, err := rules.Load(cfg.Rules.Path)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	extractor, err := ocr.NewExtractor(cfg.OCR, cfg.Mistral)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	erpClient := erp.NewClient(cfg.ERP.BaseURL, cfg.ERP.APIKey,
		erp.WithTimeout(time.Duration(cfg.ERP.TimeoutSecs)*time.Second))

	reports := report.NewStore(cfg.Paths.ReportsDir)
	mon := watcher.New(cfg.Paths.IncomingDir)

	e := &env{
		Store:   st,
		Reports: reports,
		Watcher: mon,
		QA:      qa.New(anthropicClient, st, cfg.Anthropic.QAModel, cfg.QA.TopK),
	}
	e.Pipeline = pipeline.New(cfg, st,
		extractor,
		structurer.New(anthropicClient, cfg.Anthropic.Model,
			structurer.WithMaxTokens(int64(cfg.Anthropic.MaxTokens))),
		erpClient,
		rulesCfg,
		reports,
		mon,
	)
	return e, nil
}

// finishRun handles the post-pipeline bookkeeping shared by run, watch, and
// the upload endpoint: index the audit for Q&A and archive the source file.
func (e *env) finishRun(ctx context.Context, state *pipeline.State) {
	if state.Report != nil {
		vendor := ""
		if state.Structured != nil {
			vendor = state.Structured.VendorName.Text()
		}
		err := e.QA.IndexRun(ctx,
			state.Report.InvoiceID,
			state.FileName,
			state.Report.Status,
			vendor,
			state.Discrepancies,
			state.RawText,
		)
		if err != nil {
			zap.L().Warn("qa indexing failed", zap.String("invoice", state.Report.InvoiceID), zap.Error(err))
		}
	}

	if state.FileName != "" && state.FilePath != "manual_override" {
		dest, err := e.Watcher.Archive(state.FileName, cfg.Paths.ProcessedDir)
		if err != nil {
			zap.L().Warn("archive failed", zap.String("file", state.FileName), zap.Error(err))
		} else {
			zap.L().Info("archived", zap.String("file", state.FileName), zap.String("dest", dest))
		}
	}
}
