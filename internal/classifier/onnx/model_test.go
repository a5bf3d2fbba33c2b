package onnx

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	ort "github.com/yalue/onnxruntime_go"
)

func TestPredictSoftmax(t *testing.T) {
	p := predict([]float32{-2, 3}, []string{"non-toxic", "toxic"})
	if p.Label != "toxic" {
		t.Fatalf("expected toxic, got %s", p.Label)
	}
	want := 1 / (1 + math.Exp(-5))
	if math.Abs(p.Score-want) > 1e-5 {
		t.Fatalf("expected confidence %.6f, got %.6f", want, p.Score)
	}
}

func TestPredictSingleLogit(t *testing.T) {
	p := predict([]float32{0}, []string{"injection"})
	if p.Label != "injection" || math.Abs(p.Score-0.5) > 1e-6 {
		t.Fatalf("unexpected prediction %+v", p)
	}
}

func TestSoftmaxSumsToOne(t *testing.T) {
	probs := softmax([]float32{1000, 1000, 999})
	sum := 0.0
	for _, p := range probs {
		if math.IsNaN(float64(p)) {
			t.Fatalf("softmax overflowed: %v", probs)
		}
		sum += float64(p)
	}
	if math.Abs(sum-1) > 1e-5 {
		t.Fatalf("expected probabilities to sum to 1, got %f", sum)
	}
}

func TestLoadLabelMeta(t *testing.T) {
	dir := t.TempDir()
	cfg := `{"num_labels":2,"id2label":{"1":"toxic","0":"non-toxic"}}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	meta, err := loadLabelMeta(dir)
	if err != nil {
		t.Fatalf("load meta: %v", err)
	}
	if strings.Join(meta.Labels, ",") != "non-toxic,toxic" {
		t.Fatalf("unexpected labels %v", meta.Labels)
	}
}

func TestLoadLabelMetaLabelMapWins(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"label2id":{"LABEL_0":0,"LABEL_1":1}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "label_map.json"), []byte(`["safe","unsafe"]`), 0o644); err != nil {
		t.Fatalf("write label map: %v", err)
	}
	meta, err := loadLabelMeta(dir)
	if err != nil {
		t.Fatalf("load meta: %v", err)
	}
	if strings.Join(meta.Labels, ",") != "safe,unsafe" {
		t.Fatalf("unexpected labels %v", meta.Labels)
	}
}

func TestLoadLabelMetaDefaultsNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"num_labels":3}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	meta, err := loadLabelMeta(dir)
	if err != nil {
		t.Fatalf("load meta: %v", err)
	}
	if strings.Join(meta.Labels, ",") != "LABEL_0,LABEL_1,LABEL_2" {
		t.Fatalf("unexpected labels %v", meta.Labels)
	}
}

func TestLoadLabelMetaBadIndex(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"id2label":{"x":"a"}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadLabelMeta(dir); err == nil {
		t.Fatalf("expected error for non-numeric label index")
	}
}

func TestLoadLabelMetaRejectsOversizedIndex(t *testing.T) {
	cases := map[string]string{
		"id2label":        `{"id2label":{"0":"ok","999999999":"x"}}`,
		"label2id":        `{"label2id":{"ok":0,"x":999999999}}`,
		"num_labels":      `{"num_labels":999999999}`,
		"past num_labels": `{"num_labels":2,"id2label":{"0":"a","2":"b"}}`,
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(cfg), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := loadLabelMeta(dir); err == nil {
				t.Fatalf("expected out of range error")
			}
		})
	}
}

func TestLoadLabelMetaSparseWithinNumLabels(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"num_labels":3,"id2label":{"2":"toxic"}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	meta, err := loadLabelMeta(dir)
	if err != nil {
		t.Fatalf("load meta: %v", err)
	}
	if strings.Join(meta.Labels, ",") != "LABEL_0,LABEL_1,toxic" {
		t.Fatalf("unexpected labels %v", meta.Labels)
	}
}

func TestClosedModelRejectsClassify(t *testing.T) {
	m := &Model{tokenizer: newWordPiece(map[string]int64{"[UNK]": 0}), labels: []string{"a", "b"}, seqLen: 8}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := m.Classify(context.Background(), []string{"x"}, nil); !errors.Is(err, errClosed) {
		t.Fatalf("expected errClosed, got %v", err)
	}
}

func TestResolveModelPath(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := resolveModelPath(dir); err == nil {
		t.Fatalf("expected error for bundle without model")
	}
	for _, name := range []string{"model.onnx", "model.int8.onnx"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	modelPath, bundleDir, err := resolveModelPath(dir)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if filepath.Base(modelPath) != "model.int8.onnx" || bundleDir != dir {
		t.Fatalf("expected quantized model preferred, got %s in %s", modelPath, bundleDir)
	}
	direct := filepath.Join(dir, "model.onnx")
	if p, d, err := resolveModelPath(direct); err != nil || p != direct || d != dir {
		t.Fatalf("expected direct file reference, got %s %s %v", p, d, err)
	}
}

func TestLoadMissingBundle(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope"), RuntimeSettings{}); err == nil {
		t.Fatalf("expected load error")
	}
	if _, err := Load("  ", RuntimeSettings{}); err == nil {
		t.Fatalf("expected error for empty reference")
	}
}

func TestSelectOutput(t *testing.T) {
	name, n, err := selectOutput([]ort.InputOutputInfo{
		{Name: "hidden", Dimensions: ort.NewShape(-1, 768)},
		{Name: "logits", Dimensions: ort.NewShape(-1, 2)},
	})
	if err != nil || name != "logits" || n != 2 {
		t.Fatalf("expected logits with 2 labels, got %s %d %v", name, n, err)
	}
	if _, _, err := selectOutput([]ort.InputOutputInfo{{Name: "a"}, {Name: "b"}}); err == nil {
		t.Fatalf("expected error for ambiguous outputs")
	}
}

func TestSelectInputs(t *testing.T) {
	names, tokenType, err := selectInputs([]ort.InputOutputInfo{{Name: "input_ids"}, {Name: "attention_mask"}, {Name: "token_type_ids"}})
	if err != nil || !tokenType || len(names) != 3 {
		t.Fatalf("expected token type input, got %v %v %v", names, tokenType, err)
	}
	if _, _, err := selectInputs([]ort.InputOutputInfo{{Name: "input_ids"}}); err == nil {
		t.Fatalf("expected error for missing attention_mask")
	}
}

func TestIntOption(t *testing.T) {
	if v, ok := intOption(map[string]any{"max_length": 128}, OptionMaxLength); !ok || v != 128 {
		t.Fatalf("expected int option, got %d %v", v, ok)
	}
	if v, ok := intOption(map[string]any{"max_length": float64(64)}, OptionMaxLength); !ok || v != 64 {
		t.Fatalf("expected float option from yaml/json, got %d %v", v, ok)
	}
	if _, ok := intOption(nil, OptionMaxLength); ok {
		t.Fatalf("expected missing option")
	}
}

// TestModelClassifyBundle runs a real exported model when
// DETECTORS_ONNX_BUNDLE_DIR points at one.
func TestModelClassifyBundle(t *testing.T) {
	bundleDir := strings.TrimSpace(os.Getenv("DETECTORS_ONNX_BUNDLE_DIR"))
	if bundleDir == "" {
		t.Skip("DETECTORS_ONNX_BUNDLE_DIR not set")
	}
	m, err := Load(bundleDir, RuntimeSettings{SeqLen: 128})
	if err != nil {
		t.Fatalf("load model: %v", err)
	}
	defer m.Close()

	texts := []string{"you are wonderful", "I will hurt you", "the weather is fine"}
	preds, err := m.Classify(context.Background(), texts, map[string]any{OptionMaxLength: 64})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if len(preds) != len(texts) {
		t.Fatalf("expected %d predictions, got %d", len(texts), len(preds))
	}
	for i, p := range preds {
		if p.Score < 0 || p.Score > 1 || p.Label == "" {
			t.Fatalf("prediction %d out of contract: %+v", i, p)
		}
	}
}
