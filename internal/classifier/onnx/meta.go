package onnx

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// maxLabels caps num_labels and label indices read from bundle metadata.
const maxLabels = 1 << 16

// labelMeta is the label information exported next to a model.
type labelMeta struct {
	Labels []string
}

// loadLabelMeta reads id2label/label2id from config.json, with label_map.json
// (a list or an index map) taking precedence. Missing names fall back to
// LABEL_<i>, matching exported Hugging Face configs.
func loadLabelMeta(dir string) (labelMeta, error) {
	meta := labelMeta{}
	numLabels := 0

	if data, err := os.ReadFile(filepath.Join(dir, "config.json")); err == nil {
		var cfg struct {
			NumLabels int               `json:"num_labels"`
			ID2Label  map[string]string `json:"id2label"`
			Label2ID  map[string]int    `json:"label2id"`
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return meta, fmt.Errorf("decode config.json: %w", err)
		}
		if cfg.NumLabels < 0 || cfg.NumLabels > maxLabels {
			return meta, fmt.Errorf("num_labels %d out of range", cfg.NumLabels)
		}
		numLabels = cfg.NumLabels
		switch {
		case len(cfg.ID2Label) > 0:
			labels, err := labelsFromIDMap(cfg.ID2Label, numLabels)
			if err != nil {
				return meta, err
			}
			meta.Labels = labels
		case len(cfg.Label2ID) > 0:
			labels, err := labelsFromLabel2ID(cfg.Label2ID, numLabels)
			if err != nil {
				return meta, err
			}
			meta.Labels = labels
		}
	} else if !os.IsNotExist(err) {
		return meta, fmt.Errorf("read config.json: %w", err)
	}

	if data, err := os.ReadFile(filepath.Join(dir, "label_map.json")); err == nil {
		var list []string
		if err := json.Unmarshal(data, &list); err == nil && len(list) > 0 {
			meta.Labels = list
		} else {
			var idMap map[string]string
			if err := json.Unmarshal(data, &idMap); err != nil {
				return meta, fmt.Errorf("decode label_map.json: %w", err)
			}
			labels, err := labelsFromIDMap(idMap, numLabels)
			if err != nil {
				return meta, err
			}
			meta.Labels = labels
		}
	}

	for len(meta.Labels) < numLabels {
		meta.Labels = append(meta.Labels, "LABEL_"+strconv.Itoa(len(meta.Labels)))
	}
	for i, lbl := range meta.Labels {
		if strings.TrimSpace(lbl) == "" {
			meta.Labels[i] = "LABEL_" + strconv.Itoa(i)
		}
	}
	return meta, nil
}

// labelIndexLimit is the exclusive upper bound for label indices: num_labels
// when known, otherwise the number of entries.
func labelIndexLimit(numLabels, entries int) int {
	limit := entries
	if numLabels > limit {
		limit = numLabels
	}
	if limit > maxLabels {
		limit = maxLabels
	}
	return limit
}

func labelsFromIDMap(id2label map[string]string, numLabels int) ([]string, error) {
	limit := labelIndexLimit(numLabels, len(id2label))
	maxID := -1
	ids := make(map[int]string, len(id2label))
	for k, v := range id2label {
		id, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("invalid label index %q: %w", k, err)
		}
		if id < 0 || id >= limit {
			return nil, fmt.Errorf("label index %d out of range [0,%d)", id, limit)
		}
		ids[id] = v
		if id > maxID {
			maxID = id
		}
	}
	labels := make([]string, maxID+1)
	for id, lbl := range ids {
		labels[id] = lbl
	}
	return labels, nil
}

func labelsFromLabel2ID(label2id map[string]int, numLabels int) ([]string, error) {
	type entry struct {
		id    int
		label string
	}
	limit := labelIndexLimit(numLabels, len(label2id))
	entries := make([]entry, 0, len(label2id))
	maxID := -1
	for lbl, id := range label2id {
		if id < 0 {
			continue
		}
		if id >= limit {
			return nil, fmt.Errorf("label %q index %d out of range [0,%d)", lbl, id, limit)
		}
		entries = append(entries, entry{id: id, label: lbl})
		if id > maxID {
			maxID = id
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	labels := make([]string, maxID+1)
	for _, e := range entries {
		labels[e.id] = e.label
	}
	return labels, nil
}
