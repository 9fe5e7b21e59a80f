package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/acheong08/pyextras/internal/extras"
	"github.com/acheong08/pyextras/internal/index"
	"github.com/acheong08/pyextras/internal/logger"
	"github.com/acheong08/pyextras/internal/parser"
	"github.com/acheong08/pyextras/pkg/models"
)

// ErrIndexLookup wraps failures talking to the package index
var ErrIndexLookup = errors.New("index lookup failed")

// ProgressSender interface for sending progress updates
type ProgressSender interface {
	SendMessage(msg Message)
	SendLog(message, level string)
	SendProgress(percent int, stage, message string)
	SendError(message string, err error)
}

// Pipeline runs one check and streams its progress to a sender
type Pipeline struct {
	indexURL         string
	indexConcurrency int

	sender ProgressSender
	logger *zap.SugaredLogger
}

// NewPipeline creates a new pipeline instance
func NewPipeline(config *Config, sender ProgressSender, l *zap.SugaredLogger) *Pipeline {
	if l == nil {
		l = logger.Nop()
	}
	return &Pipeline{
		indexURL:         config.IndexURL,
		indexConcurrency: config.IndexConcurrency,
		sender:           sender,
		logger:           l,
	}
}

// log sends a log message both to the client and to the server log
func (p *Pipeline) log(message, level string) {
	p.sender.SendLog(message, level)
	logger.Forward(p.logger, message, level)
}

// Run executes the check pipeline and returns the final report
func (p *Pipeline) Run(ctx context.Context, req *CheckPayload) (*models.Report, error) {
	tempDir, err := os.MkdirTemp("", "pyextras-check-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	p.log("Starting check...", "info")

	// Step 1: parse (0% - 20%)
	p.sender.SendProgress(0, "parse", "Parsing pyproject.toml...")
	manifest, lock, err := p.parse(req, tempDir)
	if err != nil {
		return nil, err
	}
	p.log(fmt.Sprintf("Checking: %s %s", manifest.Project.Name, manifest.Project.Version), "info")
	p.sender.SendProgress(20, "parse", "Manifest parsed")

	// Step 2: graph (20% - 40%)
	graph := extras.Build(manifest)
	p.sender.SendMessage(NewGraphMessage(graphPayload(graph)))
	p.sender.SendProgress(40, "graph", fmt.Sprintf("Graph built: %d extras, %d references", len(graph.Groups), len(graph.Edges())))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 3: rules (40% - 60%)
	checker := extras.NewChecker(extras.ToolOptions(manifest.Tool)...)
	report := checker.CheckGraph(manifest, graph)
	if lock != nil {
		report.Add(extras.CheckLock(graph, lock)...)
		report.Filter(checker.Ignore)
	}
	for _, f := range report.Findings {
		p.sender.SendMessage(NewFindingMessage(f))
	}
	p.sender.SendProgress(60, "rules", fmt.Sprintf("Rules evaluated: %d finding(s)", len(report.Findings)))

	// Step 4: index (60% - 90%)
	if req.Index {
		findings, err := p.checkIndex(ctx, graph)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIndexLookup, err)
		}
		before := len(report.Findings)
		report.Add(findings...)
		report.Filter(checker.Ignore)
		for _, f := range report.Findings[before:] {
			p.sender.SendMessage(NewFindingMessage(f))
		}
		p.sender.SendProgress(90, "index", "Index lookup complete")
	}

	// Step 5: report
	p.sender.SendMessage(NewReportMessage(report))
	p.sender.SendProgress(100, "report", "Check complete")

	level := "success"
	if report.HasErrors() {
		level = "warning"
	}
	p.log(fmt.Sprintf("Check finished: %d error(s), %d warning(s)", report.Errors(), report.Warnings()), level)
	return report, nil
}

// parse writes the request to tempDir and decodes it. A missing project
// name is reported as a finding later, so the manifest is not validated here.
func (p *Pipeline) parse(req *CheckPayload, tempDir string) (*models.Manifest, *parser.UvLock, error) {
	path := filepath.Join(tempDir, "pyproject.toml")
	if err := os.WriteFile(path, []byte(req.Pyproject), 0o644); err != nil {
		return nil, nil, fmt.Errorf("failed to write pyproject.toml: %w", err)
	}

	manifest, err := parser.ParsePyproject(path)
	if err != nil {
		return nil, nil, err
	}
	manifest.Path = "pyproject.toml"

	if req.Lock == "" {
		return manifest, nil, nil
	}
	lock, err := parser.ParseUvLockBytes([]byte(req.Lock))
	if err != nil {
		return nil, nil, err
	}
	p.log(fmt.Sprintf("Lockfile parsed: %d packages", len(lock.Packages)), "info")
	return manifest, lock, nil
}

func (p *Pipeline) checkIndex(ctx context.Context, graph *models.ExtrasGraph) ([]models.Finding, error) {
	p.sender.SendProgress(60, "index", "Looking up requirements on the index...")

	client := index.NewClient(p.indexURL)
	if p.indexConcurrency > 0 {
		client.Concurrency = p.indexConcurrency
	}
	client.Logger = p.logger
	client.SetLogCallback(func(message, level string) {
		p.sender.SendLog(message, level)
	})

	return client.CheckGraph(ctx, graph, func(done, total int, name string) {
		percent := 60 + done*30/total
		p.sender.SendProgress(percent, "index", fmt.Sprintf("Looked up %d/%d packages (%s)", done, total, name))
	})
}

// graphPayload converts the graph for the frontend
func graphPayload(g *models.ExtrasGraph) GraphPayload {
	payload := GraphPayload{
		Project: g.Project,
		Edges:   g.Edges(),
		Cycles:  extras.FindCycles(g),
	}

	for _, name := range g.Order {
		group := g.Groups[name]
		node := GraphNode{
			Name:         name,
			Declared:     group.Declared,
			Requirements: make([]string, 0, len(group.Requirements)),
			Includes:     g.Neighbors(name),
			Defined:      true,
		}
		for _, req := range group.Requirements {
			node.Requirements = append(node.Requirements, req.Key())
		}
		payload.Nodes = append(payload.Nodes, node)
	}

	// Undefined targets still get a node so edges resolve
	seen := make(map[string]bool)
	for _, e := range payload.Edges {
		if !g.HasGroup(e.To) && !seen[e.To] {
			seen[e.To] = true
			payload.Nodes = append(payload.Nodes, GraphNode{Name: e.To, Declared: e.To, Requirements: []string{}})
		}
	}

	return payload
}
