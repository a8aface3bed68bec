// Package laptop identifies the machine and what its keyboard supports.
package laptop

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DMIRoot is where the kernel exposes board identification.
const DMIRoot = "/sys/class/dmi/id"

// DMI is the subset of DMI data used to match a board.
type DMI struct {
	BoardName     string `json:"board_name"`
	ProductFamily string `json:"product_family"`
}

// ReadDMI reads board_name and product_family under root.
func ReadDMI(root string) (DMI, error) {
	if root == "" {
		root = DMIRoot
	}
	board, err := readTrimmed(filepath.Join(root, "board_name"))
	if err != nil {
		return DMI{}, err
	}
	family, err := readTrimmed(filepath.Join(root, "product_family"))
	if err != nil {
		return DMI{}, err
	}
	return DMI{BoardName: board, ProductFamily: family}, nil
}

func readTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
