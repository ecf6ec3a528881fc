// Package storage lays out the dataset directories and writes every sample's
// images atomically.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"pairgen/internal/config"
	"pairgen/internal/service/sampling"
)

// Layout holds the directories every split writes to. In modes other than
// split the A and B directories are the same.
type Layout struct {
	Root   string
	TrainA string
	TrainB string
	TestA  string
	TestB  string
}

// SetupLayout computes and creates every output directory up front.
//
//	with test, split:   train/train_A train/train_B test/test_A test/test_B
//	with test, other:   train/ test/
//	no test, split:     train_A/ train_B/
//	no test, other:     files directly in root
func SetupLayout(root string, mode config.SaveMode, includeTest bool) (*Layout, error) {
	l := &Layout{Root: root}

	switch {
	case includeTest && mode == config.SaveSplit:
		l.TrainA = filepath.Join(root, "train", "train_A")
		l.TrainB = filepath.Join(root, "train", "train_B")
		l.TestA = filepath.Join(root, "test", "test_A")
		l.TestB = filepath.Join(root, "test", "test_B")
	case includeTest:
		l.TrainA = filepath.Join(root, "train")
		l.TrainB = l.TrainA
		l.TestA = filepath.Join(root, "test")
		l.TestB = l.TestA
	case mode == config.SaveSplit:
		l.TrainA = filepath.Join(root, "train_A")
		l.TrainB = filepath.Join(root, "train_B")
	default:
		l.TrainA = root
		l.TrainB = root
	}

	for _, dir := range l.dirs() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	return l, nil
}

// Dirs returns the A and B directories for a split label.
func (l *Layout) Dirs(label sampling.Label) (string, string) {
	if label == sampling.Test && l.TestA != "" {
		return l.TestA, l.TestB
	}
	return l.TrainA, l.TrainB
}

// HasTest reports whether the layout has test directories.
func (l *Layout) HasTest() bool {
	return l.TestA != ""
}

func (l *Layout) dirs() []string {
	dirs := []string{l.Root, l.TrainA, l.TrainB}
	if l.HasTest() {
		dirs = append(dirs, l.TestA, l.TestB)
	}
	return dirs
}
