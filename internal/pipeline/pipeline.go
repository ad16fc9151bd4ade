// Package pipeline orchestrates the five-stage invoice audit:
// monitor, extract, translate, validate, report.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-audit/internal/config"
	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/ocr"
	"github.com/sells-group/invoice-audit/internal/report"
	"github.com/sells-group/invoice-audit/internal/rules"
	"github.com/sells-group/invoice-audit/internal/store"
	"github.com/sells-group/invoice-audit/internal/validate"
	"github.com/sells-group/invoice-audit/pkg/erp"
)

// Structurer turns raw extracted text into a structured invoice record.
type Structurer interface {
	Structure(ctx context.Context, rawText string) (*model.InvoiceRecord, error)
}

// Monitor finds the next document waiting in the incoming directory.
type Monitor interface {
	Next() (string, error)
}

// ReportSink persists rendered audit reports.
type ReportSink interface {
	Save(data model.ReportData, html string) (*model.ReportRecord, error)
}

// Request describes one pipeline invocation.
type Request struct {
	// FileName targets a specific file in the incoming directory. Empty
	// means "pick the oldest waiting document".
	FileName string
	// IsRerun with Corrected set bypasses extraction and translation and
	// validates the human-corrected record instead.
	IsRerun   bool
	Corrected *model.InvoiceRecord
}

// State is the shared memory threaded through the pipeline stages.
type State struct {
	RunID           string                `json:"run_id"`
	FilePath        string                `json:"file_path"`
	FileName        string                `json:"file_name"`
	RawText         string                `json:"raw_text"`
	Structured      *model.InvoiceRecord  `json:"structured_data"`
	Outcome         *validate.Outcome     `json:"validation_results,omitempty"`
	IsValid         bool                  `json:"is_valid"`
	Discrepancies   []string              `json:"discrepancies"`
	FinalReportHTML string                `json:"final_report_html,omitempty"`
	Report          *model.ReportRecord   `json:"report,omitempty"`
	Status          model.RunStatus       `json:"status"`
	ErrorMessage    string                `json:"error_message,omitempty"`
	Stages          []model.StageResult   `json:"stages"`
}

// Pipeline wires the audit stages to their collaborators.
type Pipeline struct {
	cfg        *config.Config
	store      store.Store
	extractor  ocr.Extractor
	structurer Structurer
	erp        erp.Client
	rules      rules.Config
	reports    ReportSink
	monitor    Monitor
}

// New creates a Pipeline with all dependencies.
func New(
	cfg *config.Config,
	st store.Store,
	extractor ocr.Extractor,
	structurer Structurer,
	erpClient erp.Client,
	rulesCfg rules.Config,
	reports ReportSink,
	monitor Monitor,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		store:      st,
		extractor:  extractor,
		structurer: structurer,
		erp:        erpClient,
		rules:      rulesCfg,
		reports:    reports,
		monitor:    monitor,
	}
}

// Run executes the pipeline for a single document. A business rejection is
// a successful run (IsValid=false with discrepancies); the returned error
// covers infrastructure failures only.
func (p *Pipeline) Run(ctx context.Context, req Request) (*State, error) {
	log := zap.L().With(zap.String("file", req.FileName), zap.Bool("rerun", req.IsRerun))
	log.Info("pipeline: starting audit")

	state := &State{
		FileName: req.FileName,
		Status:   model.RunStatusProcessing,
	}

	run, err := p.store.CreateRun(ctx, req.FileName)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	state.RunID = run.ID

	trackStage := func(name string, fn func() (*model.StageResult, error)) *model.StageResult {
		stage, stageErr := p.store.CreateStage(ctx, run.ID, name)
		if stageErr != nil {
			log.Warn("pipeline: failed to create stage", zap.String("stage", name), zap.Error(stageErr))
		}

		start := time.Now()
		sr, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		if sr == nil {
			sr = &model.StageResult{}
		}
		sr.Name = name
		sr.Duration = duration

		if fnErr != nil {
			sr.Status = model.StageStatusFailed
			sr.Error = fnErr.Error()
			state.Status = model.RunStatusFailed
			state.ErrorMessage = fnErr.Error()
			log.Error("pipeline: stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			if sr.Status == "" {
				sr.Status = model.StageStatusComplete
			}
			log.Info("pipeline: stage done",
				zap.String("stage", name),
				zap.String("status", string(sr.Status)),
				zap.Int64("duration_ms", duration),
			)
		}

		if stage != nil {
			_ = p.store.CompleteStage(ctx, stage.ID, sr)
		}
		state.Stages = append(state.Stages, *sr)
		return sr
	}

	// Stage 1: monitor.
	trackStage("monitor", func() (*model.StageResult, error) {
		return p.monitorStage(req, state)
	})

	if state.Status == model.RunStatusWaiting {
		// Nothing to process is terminal but not a failure.
		if err := p.store.UpdateRunStatus(ctx, run.ID, model.RunStatusWaiting); err != nil {
			log.Warn("pipeline: failed to update status", zap.Error(err))
		}
		return state, nil
	}

	// Stage 2: extract. Every stage past monitor no-ops once a stage failed.
	trackStage("extract", func() (*model.StageResult, error) {
		if state.Status == model.RunStatusFailed {
			return &model.StageResult{Status: model.StageStatusSkipped}, nil
		}
		return p.extractStage(ctx, req, state)
	})

	// Stage 3: translate.
	trackStage("translate", func() (*model.StageResult, error) {
		if state.Status == model.RunStatusFailed {
			return &model.StageResult{Status: model.StageStatusSkipped}, nil
		}
		return p.translateStage(ctx, state)
	})

	// Stage 4: validate.
	trackStage("validate", func() (*model.StageResult, error) {
		if state.Status == model.RunStatusFailed {
			return &model.StageResult{Status: model.StageStatusSkipped}, nil
		}
		return p.validateStage(ctx, state)
	})

	// Stage 5: report.
	trackStage("report", func() (*model.StageResult, error) {
		if state.Status == model.RunStatusFailed {
			return &model.StageResult{Status: model.StageStatusSkipped}, nil
		}
		return p.reportStage(state)
	})

	if state.Status != model.RunStatusFailed {
		state.Status = model.RunStatusCompleted
	}

	result := &model.RunResult{
		IsValid:       state.IsValid,
		Discrepancies: state.Discrepancies,
		Structured:    state.Structured,
		Error:         state.ErrorMessage,
		Stages:        state.Stages,
	}
	if state.Report != nil {
		result.InvoiceID = state.Report.InvoiceID
	}
	if err := p.store.UpdateRunResult(ctx, run.ID, state.Status, result); err != nil {
		log.Warn("pipeline: failed to persist result", zap.Error(err))
	}

	log.Info("pipeline: finished",
		zap.String("status", string(state.Status)),
		zap.Bool("is_valid", state.IsValid),
		zap.Int("discrepancies", len(state.Discrepancies)),
	)
	return state, nil
}

func (p *Pipeline) monitorStage(req Request, state *State) (*model.StageResult, error) {
	if req.IsRerun {
		// Manual override: no file involved.
		state.FilePath = "manual_override"
		return &model.StageResult{Metadata: map[string]any{"source": "rerun"}}, nil
	}

	if req.FileName != "" {
		state.FilePath = filepath.Join(p.cfg.Paths.IncomingDir, req.FileName)
		return &model.StageResult{Metadata: map[string]any{"file_path": state.FilePath}}, nil
	}

	name, err := p.monitor.Next()
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: scan incoming")
	}
	if name == "" {
		state.Status = model.RunStatusWaiting
		return &model.StageResult{Metadata: map[string]any{"found": false}}, nil
	}

	state.FileName = name
	state.FilePath = filepath.Join(p.cfg.Paths.IncomingDir, name)
	return &model.StageResult{Metadata: map[string]any{"file_path": state.FilePath}}, nil
}

func (p *Pipeline) extractStage(ctx context.Context, req Request, state *State) (*model.StageResult, error) {
	if req.IsRerun && req.Corrected != nil {
		// Human-corrected data substitutes for the whole extraction path.
		state.Structured = req.Corrected
		return &model.StageResult{
			Status:   model.StageStatusSkipped,
			Metadata: map[string]any{"source": "corrected_data"},
		}, nil
	}

	text, err := p.extractor.ExtractText(ctx, state.FilePath)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: OCR failed")
	}
	state.RawText = text
	return &model.StageResult{Metadata: map[string]any{"chars": len(text)}}, nil
}

func (p *Pipeline) translateStage(ctx context.Context, state *State) (*model.StageResult, error) {
	if state.Structured != nil {
		// Rerun path already carries a structured record.
		return &model.StageResult{Status: model.StageStatusSkipped}, nil
	}

	record, err := p.structurer.Structure(ctx, state.RawText)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: structuring failed")
	}
	state.Structured = record
	return &model.StageResult{Metadata: map[string]any{"line_items": len(record.LineItems)}}, nil
}

func (p *Pipeline) validateStage(ctx context.Context, state *State) (*model.StageResult, error) {
	outcome := validate.Validate(ctx, state.Structured, p.rules, p.erp)
	state.Outcome = &outcome
	state.IsValid = outcome.IsValid
	state.Discrepancies = outcome.Discrepancies
	return &model.StageResult{
		Metadata: map[string]any{
			"is_valid":      outcome.IsValid,
			"discrepancies": len(outcome.Discrepancies),
		},
	}, nil
}

func (p *Pipeline) reportStage(state *State) (*model.StageResult, error) {
	if state.Structured == nil {
		return nil, eris.New("pipeline: no structured data")
	}

	data := model.ReportData{
		Invoice:          state.Structured,
		ValidationStatus: model.ReportStatusFail,
		Discrepancies:    state.Discrepancies,
	}
	if state.IsValid {
		data.ValidationStatus = model.ReportStatusPass
	}

	html, err := report.Render(data)
	if err != nil {
		return nil, err
	}

	record, err := p.reports.Save(data, html)
	if err != nil {
		return nil, err
	}

	state.FinalReportHTML = html
	state.Report = record
	return &model.StageResult{Metadata: map[string]any{"invoice_id": record.InvoiceID}}, nil
}
