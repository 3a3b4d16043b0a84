package cmd

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	"github.com/MeKo-Tech/centernet/internal/backbone"
	"github.com/MeKo-Tech/centernet/internal/decoder"
	"github.com/MeKo-Tech/centernet/internal/preprocess"
	"github.com/MeKo-Tech/centernet/internal/utils"
	"github.com/spf13/cobra"
	"gorgonia.org/tensor"
)

// detection is the JSON output row for one decoded box.
type detection struct {
	Box   [4]float64 `json:"box"`
	Score float64    `json:"score"`
	Class int        `json:"class"`
}

// detectCmd runs one image through the ONNX backbone and decodes detections.
var detectCmd = &cobra.Command{
	Use:   "detect [image]",
	Short: "Decode detections for a single image",
	Long: `Warp an image into network input space, run the ONNX backbone, decode the
center heatmap into boxes and map them back onto the source image.

Examples:
  centernet detect input.jpg --model backbone.onnx
  centernet detect input.jpg --model backbone.onnx --overlay out.png`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		modelPath := cfg.Model.BackbonePath
		if cmd.Flags().Changed("model") {
			modelPath, _ = cmd.Flags().GetString("model")
		}
		minScore, _ := cmd.Flags().GetFloat64("min-score")
		overlayPath, _ := cmd.Flags().GetString("overlay")

		img, err := loadImage(args[0])
		if err != nil {
			return err
		}
		bounds := img.Bounds()
		maxDim := float64(max(bounds.Dx(), bounds.Dy()))
		info := decoder.ImageInfo{
			Center: utils.Point{X: float64(bounds.Dx()) / 2, Y: float64(bounds.Dy()) / 2},
			Size:   utils.Point{X: maxDim, Y: maxDim},
			Width:  cfg.Decode.InputWidth / cfg.Decode.DownRatio,
			Height: cfg.Decode.InputHeight / cfg.Decode.DownRatio,
		}

		warped, err := preprocess.WarpImage(img, info.Center, info.Size,
			cfg.Decode.InputWidth, cfg.Decode.InputHeight)
		if err != nil {
			return err
		}

		sess, err := backbone.New(backbone.Config{
			ModelPath:  modelPath,
			NumThreads: cfg.Model.NumThreads,
			InputName:  "input",
			FmapOutput: "fmap",
			WHOutput:   "wh",
			RegOutput:  "reg",
		})
		if err != nil {
			return err
		}
		defer func() { _ = sess.Close() }()

		outs, err := sess.Run(imageTensor(warped))
		if err != nil {
			return err
		}

		dets, err := decoder.Decode(outs.Fmap, outs.WH, outs.Reg,
			cfg.Decode.CatSpecWH, cfg.Decode.TopK)
		if err != nil {
			return err
		}
		boxes, err := decoder.TransformBoxes(dets.Boxes, info, 1)
		if err != nil {
			return err
		}

		rows := collectDetections(boxes, dets, minScore)
		if overlayPath != "" {
			if err := writeOverlay(img, rows, overlayPath); err != nil {
				return err
			}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	},
}

// loadImage decodes an image file using the registered stdlib formats.
func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer func() { _ = f.Close() }()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", path, err)
	}
	return img, nil
}

// imageTensor converts an RGBA image to a normalized [1,3,H,W] tensor.
func imageTensor(img *image.RGBA) *tensor.Dense {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]float32, 3*h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			data[y*w+x] = float32(img.Pix[o]) / 255
			data[h*w+y*w+x] = float32(img.Pix[o+1]) / 255
			data[2*h*w+y*w+x] = float32(img.Pix[o+2]) / 255
		}
	}
	return tensor.New(tensor.WithShape(1, 3, h, w), tensor.WithBacking(data))
}

// collectDetections flattens the decoded batch-of-one into JSON rows above the
// score threshold.
func collectDetections(boxes *tensor.Dense, dets *decoder.Detections, minScore float64) []detection {
	bd := boxes.Data().([]float32)
	sd := dets.Scores.Data().([]float32)
	cd := dets.Classes.Data().([]float32)
	rows := make([]detection, 0, len(sd))
	for i := range sd {
		if float64(sd[i]) < minScore {
			continue
		}
		rows = append(rows, detection{
			Box: [4]float64{
				float64(bd[i*4]), float64(bd[i*4+1]),
				float64(bd[i*4+2]), float64(bd[i*4+3]),
			},
			Score: float64(sd[i]),
			Class: int(cd[i]),
		})
	}
	return rows
}

// writeOverlay renders detection rectangles onto a copy of the source image.
func writeOverlay(img image.Image, rows []detection, path string) error {
	dst := image.NewRGBA(img.Bounds())
	for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
		for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
			dst.Set(x, y, img.At(x, y))
		}
	}
	for _, d := range rows {
		box := utils.NewBox(d.Box[0], d.Box[1], d.Box[2], d.Box[3])
		utils.DrawRect(dst, box.ToRect(dst.Bounds()), overlayColor, 2)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating overlay file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return png.Encode(f, dst)
}

func init() {
	detectCmd.Flags().String("model", "", "path to the ONNX backbone model")
	detectCmd.Flags().Float64("min-score", 0.3, "minimum detection score to report")
	detectCmd.Flags().String("overlay", "", "write a detection overlay PNG to this path")
	rootCmd.AddCommand(detectCmd)
}
