package ai

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

// loadNet reads a DNN model and sets CPU backend/target preferences. Torch
// (.t7) models go through the Torch importer, everything else through ReadNet.
func loadNet(modelPath string) (gocv.Net, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return gocv.Net{}, fmt.Errorf("model file not found: %s", modelPath)
	}

	var net gocv.Net
	switch strings.ToLower(filepath.Ext(modelPath)) {
	case ".t7", ".net":
		net = gocv.ReadNetFromTorch(modelPath)
	default:
		net = gocv.ReadNet(modelPath, "")
	}

	if net.Empty() {
		return gocv.Net{}, fmt.Errorf("failed to load network from %s", modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return gocv.Net{}, fmt.Errorf("failed to set preferable backend or target")
	}
	return net, nil
}
