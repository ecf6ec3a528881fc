package storage

import "fmt"

// FileName returns the deterministic name of a sample file:
// f<index>[_<variant>]_<frame>.<ext>. The variant suffix is only added when
// more than one variant is produced per frame.
func FileName(index, variant, numPer int, frameName, ext string) string {
	if numPer > 1 {
		return fmt.Sprintf("f%05d_%02d_%s.%s", index, variant, frameName, ext)
	}
	return fmt.Sprintf("f%05d_%s.%s", index, frameName, ext)
}
