// Package onnx runs exported sequence-classification models (BERT family)
// locally through onnxruntime and reports one (label, confidence) pair per
// input text.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/straja-ai/detectors/internal/detector"
	"github.com/straja-ai/detectors/internal/redact"
)

// OptionMaxLength overrides the token window for a single call.
const OptionMaxLength = "max_length"

var errClosed = errors.New("onnx classifier is closed")

// Model wraps one onnxruntime session and its tokenizer. Run calls on the
// session are serialized.
type Model struct {
	path           string
	session        *ort.DynamicAdvancedSession
	tokenizer      Tokenizer
	labels         []string
	seqLen         int
	needsTokenType bool

	mu sync.Mutex
}

// Load opens a model bundle. ref is either a bundle directory holding
// model.int8.onnx or model.onnx plus config.json and tokenizer assets, or the
// path of an .onnx file inside such a directory.
func Load(ref string, rt RuntimeSettings) (*Model, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("model reference is empty")
	}
	rt = rt.withDefaults()

	modelPath, bundleDir, err := resolveModelPath(ref)
	if err != nil {
		return nil, err
	}

	if err := verifyBundle(bundleDir); err != nil {
		return nil, fmt.Errorf("verify bundle: %w", err)
	}
	meta, err := loadLabelMeta(bundleDir)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}
	tokenizer, err := LoadTokenizerFromDir(bundleDir)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	if err := initRuntime(bundleDir, rt); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("inspect model: %w", err)
	}
	inputNames, needsTokenType, err := selectInputs(inputs)
	if err != nil {
		return nil, err
	}
	outputName, numLabels, err := selectOutput(outputs)
	if err != nil {
		return nil, err
	}
	if numLabels <= 0 {
		numLabels = len(meta.Labels)
	}
	if numLabels <= 0 {
		return nil, errors.New("cannot determine label count from model or config")
	}
	labels := meta.Labels
	for len(labels) < numLabels {
		labels = append(labels, fmt.Sprintf("LABEL_%d", len(labels)))
	}

	opts, err := newSessionOptions(rt)
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, []string{outputName}, opts)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	redact.Logf("onnx classifier: loaded %s labels=%v", filepath.Base(modelPath), labels[:numLabels])
	return &Model{
		path:           modelPath,
		session:        session,
		tokenizer:      tokenizer,
		labels:         labels[:numLabels],
		seqLen:         rt.SeqLen,
		needsTokenType: needsTokenType,
	}, nil
}

// Labels returns the class names in logit order.
func (m *Model) Labels() []string {
	return append([]string(nil), m.labels...)
}

// Classify scores all texts in one session run.
func (m *Model) Classify(ctx context.Context, texts []string, opts map[string]any) ([]detector.Prediction, error) {
	if m == nil || m.tokenizer == nil {
		return nil, errors.New("onnx classifier not initialized")
	}
	if len(texts) == 0 {
		return []detector.Prediction{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	closed := m.session == nil
	m.mu.Unlock()
	if closed {
		return nil, errClosed
	}

	seqLen := m.seqLen
	if v, ok := intOption(opts, OptionMaxLength); ok && v > 1 {
		seqLen = v
	}

	n := len(texts)
	ids := make([]int64, 0, n*seqLen)
	mask := make([]int64, 0, n*seqLen)
	for _, text := range texts {
		tokIDs, attn := m.tokenizer.Encode(text, seqLen)
		ids = append(ids, tokIDs...)
		mask = append(mask, attn...)
	}
	debugTokens(m.path, n, seqLen, mask)

	shape := ort.NewShape(int64(n), int64(seqLen))
	inputIDs, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("allocate input_ids tensor: %w", err)
	}
	defer inputIDs.Destroy()
	attention, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("allocate attention_mask tensor: %w", err)
	}
	defer attention.Destroy()

	inputs := []ort.Value{inputIDs, attention}
	if m.needsTokenType {
		tokenTypes, err := ort.NewTensor(shape, make([]int64, n*seqLen))
		if err != nil {
			return nil, fmt.Errorf("allocate token_type_ids tensor: %w", err)
		}
		defer tokenTypes.Destroy()
		inputs = append(inputs, tokenTypes)
	}

	k := len(m.labels)
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(n), int64(k)))
	if err != nil {
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}
	defer output.Destroy()

	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return nil, errClosed
	}
	err = m.session.Run(inputs, []ort.Value{output})
	m.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	raw := output.GetData()
	if len(raw) != n*k {
		return nil, fmt.Errorf("onnx output has %d values, want %d", len(raw), n*k)
	}
	preds := make([]detector.Prediction, n)
	for i := range preds {
		preds[i] = predict(raw[i*k:(i+1)*k], m.labels)
	}
	return preds, nil
}

// Close releases the session.
func (m *Model) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}

// predict picks the most probable label of one logits row. A single-logit
// head is read as sigmoid(logit) for labels[0].
func predict(logits []float32, labels []string) detector.Prediction {
	if len(logits) == 1 {
		return detector.Prediction{Label: labels[0], Score: float64(sigmoid(logits[0]))}
	}
	probs := softmax(logits)
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return detector.Prediction{Label: labels[best], Score: float64(probs[best])}
}

func resolveModelPath(ref string) (modelPath, bundleDir string, err error) {
	info, err := os.Stat(ref)
	if err != nil {
		return "", "", fmt.Errorf("model reference %s: %w", ref, err)
	}
	if !info.IsDir() {
		if !strings.EqualFold(filepath.Ext(ref), ".onnx") {
			return "", "", fmt.Errorf("model reference %s is not an .onnx file or bundle dir", ref)
		}
		return ref, filepath.Dir(ref), nil
	}
	for _, name := range []string{"model.int8.onnx", "model.onnx"} {
		candidate := filepath.Join(ref, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, ref, nil
		}
	}
	return "", "", fmt.Errorf("model file missing in %s (model.int8.onnx or model.onnx)", ref)
}

func selectInputs(inputs []ort.InputOutputInfo) ([]string, bool, error) {
	has := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		has[in.Name] = true
	}
	for _, required := range []string{"input_ids", "attention_mask"} {
		if !has[required] {
			return nil, false, fmt.Errorf("model input %q missing", required)
		}
	}
	names := []string{"input_ids", "attention_mask"}
	if has["token_type_ids"] {
		return append(names, "token_type_ids"), true, nil
	}
	return names, false, nil
}

func selectOutput(outputs []ort.InputOutputInfo) (string, int, error) {
	if len(outputs) == 0 {
		return "", 0, fmt.Errorf("no outputs found")
	}
	pick := -1
	for i, out := range outputs {
		if strings.EqualFold(out.Name, "logits") {
			pick = i
			break
		}
	}
	if pick < 0 {
		if len(outputs) != 1 {
			names := make([]string, 0, len(outputs))
			for _, out := range outputs {
				names = append(names, out.Name)
			}
			return "", 0, fmt.Errorf("multiple outputs found without logits: %v", names)
		}
		pick = 0
	}
	out := outputs[pick]
	numLabels := 0
	if dims := out.Dimensions; len(dims) > 0 && dims[len(dims)-1] > 0 {
		numLabels = int(dims[len(dims)-1])
	}
	return out.Name, numLabels, nil
}

func intOption(opts map[string]any, key string) (int, bool) {
	v, ok := opts[key]
	if !ok {
		return 0, false
	}
	switch num := v.(type) {
	case int:
		return num, true
	case int64:
		return int(num), true
	case float64:
		return int(num), true
	default:
		return 0, false
	}
}

func softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	sum := 0.0
	out := make([]float32, len(logits))
	for i, v := range logits {
		exp := math.Exp(float64(v - maxVal))
		out[i] = float32(exp)
		sum += exp
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

func sigmoid(v float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(v))))
}

func debugML() bool {
	return strings.TrimSpace(os.Getenv("DETECTORS_DEBUG_ML")) == "1"
}

func debugTokens(model string, batch, seqLen int, mask []int64) {
	if !debugML() {
		return
	}
	count := 0
	for _, v := range mask {
		count += int(v)
	}
	redact.Logf("onnx classifier debug: model=%s batch=%d max_tokens=%d token_count=%d", filepath.Base(model), batch, seqLen, count)
}
