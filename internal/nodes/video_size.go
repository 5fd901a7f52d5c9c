package nodes

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/nodeflow/nodeflow/internal/node"
)

// nearSquareThreshold is the relative width/height difference below which
// an image counts as square for orientation detection.
const nearSquareThreshold = 0.1

// sizeTable maps resolution preset → orientation → (width, height).
// 1080p uses 1088 on the short axis — the generator requires dimensions
// divisible by 16.
var sizeTable = map[string]map[string][2]int{
	"480p": {
		"landscape": {640, 480},
		"portrait":  {480, 640},
		"square":    {480, 480},
	},
	"720p": {
		"landscape": {1280, 720},
		"portrait":  {720, 1280},
		"square":    {720, 720},
	},
	"1080p": {
		"landscape": {1920, 1088},
		"portrait":  {1088, 1920},
		"square":    {1088, 1088},
	},
}

// videoSizeNode picks a width/height pair from the resolution table,
// deriving the orientation from a reference image's aspect ratio in auto
// mode.
type videoSizeNode struct{}

func (n *videoSizeNode) Schema() node.Schema {
	return node.Schema{
		ID:          "video_size",
		DisplayName: "Video Size",
		Category:    "utils/video",
		Description: "Width/height for video generation, based on a resolution preset and image aspect ratio.",
		Inputs: []node.Port{
			{Name: "image", Type: node.PortImage, Optional: true,
				Tooltip: "Reference image file used for aspect detection in auto mode."},
			{Name: "width", Type: node.PortInt, Optional: true,
				Tooltip: "Reference width; used instead of the image when set."},
			{Name: "height", Type: node.PortInt, Optional: true,
				Tooltip: "Reference height; used instead of the image when set."},
			{Name: "resolution", Type: node.PortString, Default: "720p",
				Options: []string{"480p", "720p", "1080p"}},
			{Name: "orientation", Type: node.PortString, Default: "auto",
				Options: []string{"auto", "landscape", "portrait", "square"}},
		},
		Outputs: []node.Port{
			{Name: "width", Type: node.PortInt},
			{Name: "height", Type: node.PortInt},
		},
	}
}

func (n *videoSizeNode) Execute(ctx context.Context, in node.Inputs) (node.Outputs, error) {
	schema := n.Schema()
	resolution := in.String("resolution")
	orientation := in.String("orientation")

	resPort, _ := schema.InputPort("resolution")
	if err := node.ValidateCombo(resPort, resolution); err != nil {
		return nil, err
	}
	orientPort, _ := schema.InputPort("orientation")
	if err := node.ValidateCombo(orientPort, orientation); err != nil {
		return nil, err
	}

	if orientation == "auto" {
		w, h, err := referenceDims(in)
		if err != nil {
			return nil, err
		}
		orientation = orientationFromDims(w, h)
	}

	size, ok := sizeTable[resolution][orientation]
	if !ok {
		return nil, fmt.Errorf("no size for %s/%s", resolution, orientation)
	}

	return node.Outputs{"width": size[0], "height": size[1]}, nil
}

// referenceDims returns the reference dimensions for auto orientation:
// explicit width/height inputs when both are set, otherwise the header of
// the image file.
func referenceDims(in node.Inputs) (int, int, error) {
	w, h := in.Int("width"), in.Int("height")
	if w > 0 && h > 0 {
		return w, h, nil
	}

	path := in.String("image")
	if path == "" {
		return 0, 0, fmt.Errorf("auto orientation requires an image or explicit width/height")
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("opening reference image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decoding reference image %s: %w", path, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("invalid image dimensions: %dx%d", cfg.Width, cfg.Height)
	}
	return cfg.Width, cfg.Height, nil
}

// orientationFromDims classifies an aspect ratio. Dimensions within
// nearSquareThreshold of each other (relative to the short axis) count
// as square.
func orientationFromDims(w, h int) string {
	minDim := min(w, h)
	diff := w - h
	if diff < 0 {
		diff = -diff
	}

	if minDim > 0 && float64(diff)/float64(minDim) < nearSquareThreshold {
		return "square"
	}
	if w > h {
		return "landscape"
	}
	if h > w {
		return "portrait"
	}
	return "square"
}
