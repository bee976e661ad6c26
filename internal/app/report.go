package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"compliance_checker/internal/metrics"
	"compliance_checker/internal/vectorstore"

	"github.com/sashabaranov/go-openai"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"
)

const reportSystemPrompt = `# Role and Purpose:
You evaluate resumes against a job description, required skills and experience.
Produce a professional, structured suitability report that says whether the
resume matches the requirements, with a score and a detailed explanation.

# Evaluation Guidelines:
1. Resume assessment: compare the resume with the job description, required
   skills, qualifications, experience and any other stated parameters, and
   judge how well they align.
2. Scoring and verdict: give a suitability score from 0 to 100
   (0-40 poor fit, 41-70 moderate fit, 71-100 excellent fit) and a verdict:
   "Good Fit", "Moderate Fit" or "Poor Fit".
3. Strengths and weaknesses: list the key strengths for this role and the
   specific gaps or missing elements that lower the score.
4. Reasoning and feedback: explain the score with references to concrete
   skills, experience or gaps, and give actionable advice.
5. Missing information: when the resume lacks details needed for a complete
   evaluation, say what is missing and set enough_context to false.
6. Tone: professional, constructive and specific. No generic feedback.

Consider transferable skills that make up for missing qualifications, and
note irrelevant content that could be trimmed for this role.

# Response format:
Reply with a single JSON object and nothing else:
{
  "thought_process": ["short reasoning steps"],
  "answer": "the full report in markdown: Suitability Report (score and verdict), Strengths, Areas for Improvement, Reasoning, Additional Information",
  "enough_context": true,
  "score": 0,
  "verdict": "Good Fit | Moderate Fit | Poor Fit",
  "strengths": ["..."],
  "improvements": ["..."]
}`

// SuitabilityReport is the structured LLM answer plus the context it saw.
type SuitabilityReport struct {
	ThoughtProcess []string            `json:"thought_process"`
	Answer         string              `json:"answer"`
	EnoughContext  bool                `json:"enough_context"`
	Score          int                 `json:"score"`
	Verdict        string              `json:"verdict"`
	Strengths      []string            `json:"strengths,omitempty"`
	Improvements   []string            `json:"improvements,omitempty"`
	Sources        []vectorstore.Match `json:"sources"`
}

// ResumeRequest asks for a resume evaluated against a job description.
type ResumeRequest struct {
	FileName       string
	ContentType    string
	Data           []byte
	JobDescription string
	K              int
}

type ResumeReport struct {
	Document DocumentRecord     `json:"document"`
	Report   *SuitabilityReport `json:"report"`
}

// contextEntry is what the model sees for every retrieved chunk.
type contextEntry struct {
	Content  string `json:"content"`
	Category string `json:"category"`
}

func buildReportMessages(question string, matches []vectorstore.Match) ([]openai.ChatCompletionMessage, error) {
	entries := make([]contextEntry, len(matches))
	for i, m := range matches {
		category := m.Metadata["category"]
		if category == "" {
			category = m.Metadata["source"]
		}
		entries[i] = contextEntry{Content: m.Content, Category: category}
	}

	contextJSON, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, err
	}

	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: reportSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: "# User question:\n" + question},
		{Role: openai.ChatMessageRoleAssistant, Content: "# Retrieved information:\n" + string(contextJSON)},
	}, nil
}

// Report answers question from the k chunks of namespace closest to it.
func (a *App) Report(ctx context.Context, question, namespace string, k int) (*SuitabilityReport, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", ErrInvalidRequest)
	}

	matches, err := a.Search(ctx, question, namespace, k)
	if err != nil {
		return nil, err
	}
	return a.synthesize(ctx, question, matches)
}

// EvaluateResume ingests the resume into its own namespace, retrieves the
// chunks closest to the job description and asks the model for a report.
func (a *App) EvaluateResume(ctx context.Context, req ResumeRequest) (*ResumeReport, error) {
	jd := strings.TrimSpace(req.JobDescription)
	if jd == "" {
		return nil, fmt.Errorf("%w: job description is empty", ErrInvalidRequest)
	}
	k := req.K
	if k == 0 {
		k = a.cfg.TopK
	}
	if k < 0 {
		return nil, fmt.Errorf("%w, got %d", vectorstore.ErrInvalidK, k)
	}

	namespace := ResumeNamespace(DocumentID(req.Data))
	res, err := a.IngestDocument(ctx, IngestRequest{
		FileName:    req.FileName,
		ContentType: req.ContentType,
		Data:        req.Data,
		Namespace:   namespace,
	})
	if err != nil {
		return nil, err
	}

	matches, err := a.Search(ctx, jd, namespace, k)
	if err != nil {
		return nil, err
	}

	question := "Evaluate how well this resume fits the following job description.\n\n" + jd
	report, err := a.synthesize(ctx, question, matches)
	if err != nil {
		return nil, err
	}
	return &ResumeReport{Document: res.Document, Report: report}, nil
}

// ResumeNamespace keeps every resume apart from the shared namespaces.
func ResumeNamespace(docID string) string {
	if len(docID) > 12 {
		docID = docID[:12]
	}
	return "resume-" + docID
}

func (a *App) synthesize(ctx context.Context, question string, matches []vectorstore.Match) (report *SuitabilityReport, err error) {
	messages, err := buildReportMessages(question, matches)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	answer, err := a.llm.Complete(ctx, messages)
	metrics.ObserveReport(time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLLM, err)
	}

	report = parseReport(answer)
	report.Sources = matches
	if report.Sources == nil {
		report.Sources = []vectorstore.Match{}
	}

	a.logger.WithContext(ctx).Info("report generated",
		zap.Int("sources", len(matches)),
		zap.Int("score", report.Score),
		zap.Bool("enough_context", report.EnoughContext),
		zap.Duration("took", time.Since(start)))

	return report, nil
}

type rawReport struct {
	ThoughtProcess json.RawMessage `json:"thought_process"`
	Answer         json.RawMessage `json:"answer"`
	EnoughContext  *bool           `json:"enough_context"`
	Score          json.RawMessage `json:"score"`
	Verdict        string          `json:"verdict"`
	Strengths      json.RawMessage `json:"strengths"`
	Improvements   json.RawMessage `json:"improvements"`
}

// parseReport is lenient: models wrap JSON in code fences, send numbers as
// strings and single strings instead of lists. Anything that is not a JSON
// object is kept verbatim as the answer with enough_context false.
func parseReport(content string) *SuitabilityReport {
	body := stripCodeFence(content)

	var raw rawReport
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return &SuitabilityReport{Answer: strings.TrimSpace(content)}
	}

	r := &SuitabilityReport{
		ThoughtProcess: stringList(raw.ThoughtProcess),
		Answer:         stringValue(raw.Answer),
		Verdict:        strings.TrimSpace(raw.Verdict),
		Strengths:      stringList(raw.Strengths),
		Improvements:   stringList(raw.Improvements),
	}
	if raw.EnoughContext != nil {
		r.EnoughContext = *raw.EnoughContext
	}

	score, ok := scoreValue(raw.Score)
	if ok {
		r.Score = score
		if r.Verdict == "" {
			r.Verdict = Verdict(r.Score)
		}
	}
	return r
}

// Verdict maps a score to its band.
func Verdict(score int) string {
	switch {
	case score <= 40:
		return "Poor Fit"
	case score <= 70:
		return "Moderate Fit"
	default:
		return "Good Fit"
	}
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func stringValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	if s := stringValue(raw); s != "" {
		return []string{s}
	}
	return nil
}

func scoreValue(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return roundScore(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "/100"))
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return roundScore(f)
		}
	}
	return 0, false
}

// roundScore clamps to 0..100 before converting; NaN is no score.
func roundScore(f float64) (int, bool) {
	if math.IsNaN(f) {
		return 0, false
	}
	return int(math.Round(math.Max(0, math.Min(100, f)))), true
}

// RenderMarkdown formats a report for terminals and files.
func RenderMarkdown(r *SuitabilityReport) string {
	var buf strings.Builder

	buf.WriteString("# Suitability Report\n\n")
	if r.Verdict != "" {
		fmt.Fprintf(&buf, "- **Suitability Score**: %d out of 100\n", r.Score)
		fmt.Fprintf(&buf, "- **Verdict**: %s\n", r.Verdict)
	}
	if !r.EnoughContext {
		buf.WriteString("- **Note**: the retrieved context was not enough for a complete evaluation\n")
	}
	buf.WriteString("\n")

	writeList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&buf, "## %s\n\n", title)
		for _, it := range items {
			fmt.Fprintf(&buf, "- %s\n", it)
		}
		buf.WriteString("\n")
	}
	writeList("Strengths", r.Strengths)
	writeList("Areas for Improvement", r.Improvements)

	if r.Answer != "" {
		buf.WriteString("## Report\n\n")
		buf.WriteString(strings.TrimSpace(r.Answer))
		buf.WriteString("\n\n")
	}

	if len(r.Sources) > 0 {
		buf.WriteString("## Sources\n\n")
		for i, s := range r.Sources {
			fmt.Fprintf(&buf, "%d. %s, %s (similarity: %.2f)\n", i+1, s.Metadata["source"], s.Metadata["section"], s.Score)
		}
	}

	return buf.String()
}

// RenderHTML converts RenderMarkdown's output with goldmark.
func RenderHTML(r *SuitabilityReport) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(RenderMarkdown(r)), &buf); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}
