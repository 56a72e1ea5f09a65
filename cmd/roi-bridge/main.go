package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	roibridge "github.com/menta2k/roi-bridge"
	"github.com/menta2k/roi-bridge/internal/config"
	"github.com/menta2k/roi-bridge/internal/utils"
	"github.com/menta2k/roi-bridge/pkg/client"
	"github.com/menta2k/roi-bridge/pkg/geom"
	"github.com/menta2k/roi-bridge/pkg/host"
	"github.com/menta2k/roi-bridge/pkg/legacy"
	"github.com/menta2k/roi-bridge/pkg/llamacpp"
	"github.com/menta2k/roi-bridge/pkg/maskio"
	"github.com/menta2k/roi-bridge/pkg/ollama"
	"github.com/menta2k/roi-bridge/pkg/reassemble"
	"github.com/menta2k/roi-bridge/pkg/roitree"
)

const usage = `usage: %s [-config path] [-db path] [-log level] <command> [flags]

commands:
  export   write the stored ROIs of an image as a legacy overlay (JSON)
  import   store a legacy overlay (JSON) for an image
  suggest  ask a vision model for ROIs of an image file or URL
  info     summarize stored ROIs without converting them
  config   write the default configuration file
`

func main() {
	var cfgPath, dbPath, logLevel string
	flag.StringVar(&cfgPath, "config", config.GetConfigPath(), "configuration file")
	flag.StringVar(&dbPath, "db", "", "ROI database path (overrides config)")
	flag.StringVar(&logLevel, "log", "", "log level: debug|info|warn|error (overrides config)")
	flag.Usage = func() { fmt.Fprintf(os.Stderr, usage, filepath.Base(os.Args[0])) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	cfg := config.Default()
	if utils.FileExists(cfgPath) {
		loaded, err := config.LoadFromFile(cfgPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if dbPath != "" {
		cfg.Store.DatabasePath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger, err := roibridge.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if cmd == "config" {
		if err := cfg.SaveToFile(cfgPath); err != nil {
			fatal(logger, "failed to write config", err)
		}
		logger.Info("config written", "path", cfgPath)
		return
	}

	b, err := roibridge.NewWithConfig(cfg, logger)
	if err != nil {
		fatal(logger, "failed to start", err)
	}
	defer b.Close()

	ctx := context.Background()
	switch cmd {
	case "export":
		err = runExport(ctx, b, args)
	case "import":
		err = runImport(ctx, b, args)
	case "suggest":
		err = runSuggest(ctx, b, args)
	case "info":
		err = runInfo(ctx, b, args)
	default:
		flag.Usage()
		b.Close()
		os.Exit(2)
	}
	if err != nil {
		b.Close()
		fatal(logger, cmd+" failed", err)
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func runExport(ctx context.Context, b *roibridge.Bridge, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	imageID := fs.Int64("image", 0, "image ID")
	out := fs.String("out", "-", "output JSON file, - for stdout")
	masks := fs.String("masks", "", "directory to write mask shapes to as image files")
	fs.Parse(args)
	if *imageID <= 0 {
		return errors.New("-image is required")
	}

	tree := b.Tree(*imageID)
	if err := tree.Load(ctx); err != nil {
		return err
	}
	if *masks != "" {
		if err := writeMasks(tree, *imageID, *masks, b.Config().Output.MaskFormat, b.Logger()); err != nil {
			return err
		}
	}

	ov, err := reassemble.TreeToOverlay(tree, b.Registry())
	if err != nil {
		return err
	}
	return writeOverlay(ov, *out)
}

func writeMasks(tree roitree.Tree, imageID int64, dir, format string, logger *slog.Logger) error {
	if err := utils.EnsureDir(dir); err != nil {
		return err
	}
	proc := maskio.NewProcessor()
	for _, c := range tree.Children() {
		cn, ok := c.(*roitree.CollectionNode)
		if !ok {
			continue
		}
		rd := cn.ROIData()
		for _, s := range rd.Shapes() {
			m, ok := geom.Resolve(s.Geometry).(*geom.Mask)
			if !ok {
				continue
			}
			path := utils.MaskFilename(dir, imageID, rd.ID, s.ID, format)
			if err := proc.SaveMask(m.Pix, path, format); err != nil {
				return err
			}
			logger.Info("mask written", "path", path)
		}
	}
	return nil
}

func writeOverlay(c legacy.Collection, out string) error {
	if out == "-" {
		return legacy.WriteJSON(os.Stdout, c)
	}
	if err := utils.EnsureDir(filepath.Dir(out)); err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := legacy.WriteJSON(f, c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runImport(ctx context.Context, b *roibridge.Bridge, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	imageID := fs.Int64("image", 0, "image ID")
	in := fs.String("in", "-", "overlay JSON file, - for stdin")
	fs.Parse(args)
	if *imageID <= 0 {
		return errors.New("-image is required")
	}

	var r io.Reader = os.Stdin
	if *in != "-" {
		f, err := os.Open(*in)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	ov, err := legacy.ReadJSON(r)
	if err != nil {
		return err
	}
	rois, err := b.Save(ctx, *imageID, ov)
	if err != nil {
		return err
	}
	for _, rd := range rois {
		fmt.Printf("collection %d: %d shapes\n", rd.ID, rd.NumShapes())
	}
	return nil
}

func runSuggest(ctx context.Context, b *roibridge.Bridge, args []string) error {
	cfg := b.Config()
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	in := fs.String("in", "", "input image path or URL (jpg/png/webp)")
	imageID := fs.Int64("image", 0, "image ID; with -save the suggestions join its stored ROIs")
	backend := fs.String("backend", cfg.Vision.Backend, "backend to use: ollama or llamacpp")
	url := fs.String("url", cfg.Vision.BackendURL, "vision server URL")
	model := fs.String("model", cfg.Vision.Model, "model name")
	outDir := fs.String("out", cfg.Output.Directory, "output directory")
	save := fs.Bool("save", false, "store the suggested ROIs")
	preview := fs.Bool("preview", false, "write a preview image with the ROI bounds drawn")
	fs.Parse(args)
	if *in == "" {
		return errors.New("-in is required")
	}
	if *save && *imageID <= 0 {
		return errors.New("-save needs -image")
	}
	cfg.Vision.Model = *model

	vc, err := newVisionClient(*backend, *url)
	if err != nil {
		return err
	}
	proc := maskio.NewProcessor()
	src, err := proc.LoadImageSmart(*in)
	if err != nil {
		return err
	}

	img := host.NewImage(*imageID, filepath.Base(*in))
	if *imageID > 0 {
		if err := b.Open(img); err != nil {
			return err
		}
	} else {
		b.Display().SetActive(img)
	}

	m := host.NewModule("suggest")
	if err := b.Run(ctx, m, b.Detector(vc).Step(src)); err != nil {
		return err
	}
	ov := img.Overlay()
	if ov == nil {
		ov = legacy.NewOverlay()
	}

	if err := utils.EnsureDir(*outDir); err != nil {
		return err
	}
	jsonPath := utils.GenerateOutputFilename(*in, *outDir, "_rois", "json")
	if err := writeOverlay(ov, jsonPath); err != nil {
		return err
	}
	b.Logger().Info("wrote overlay", "path", jsonPath, "rois", len(ov.Rois()))

	if *preview {
		rects := make([]image.Rectangle, 0, len(ov.Rois()))
		for _, r := range ov.Rois() {
			bb := r.Bounds()
			rects = append(rects, image.Rect(int(bb.X.Lo), int(bb.Y.Lo), int(bb.X.Hi), int(bb.Y.Hi)))
		}
		dbg := proc.RenderBounds(src, rects, color.NRGBA{R: 255, G: 64, B: 64, A: 255})
		dbgPath := utils.GenerateOutputFilename(*in, *outDir, "_preview", "png")
		if err := imaging.Save(dbg, dbgPath); err != nil {
			b.Logger().Warn("preview save failed", "path", dbgPath, "error", err)
		} else {
			b.Logger().Info("wrote preview", "path", dbgPath)
		}
	}

	if *save {
		rois, err := b.Save(ctx, *imageID, ov)
		if err != nil {
			return err
		}
		b.Logger().Info("suggestions stored", "image_id", *imageID, "collections", len(rois))
	}
	return nil
}

func newVisionClient(backend, url string) (client.VisionClient, error) {
	switch backend {
	case "ollama":
		c, err := ollama.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return c, nil
	case "llamacpp":
		c, err := llamacpp.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown backend: %s (use 'ollama' or 'llamacpp')", backend)
}

func runInfo(ctx context.Context, b *roibridge.Bridge, args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	imageID := fs.Int64("image", 0, "image ID, 0 for all images")
	fs.Parse(args)

	if st, err := os.Stat(b.Config().Store.DatabasePath); err == nil {
		fmt.Printf("database: %s (%s)\n", b.Config().Store.DatabasePath, utils.FormatFileSize(st.Size()))
	}

	ids := []int64{*imageID}
	if *imageID <= 0 {
		var err error
		if ids, err = b.Store().Images(ctx); err != nil {
			return err
		}
	}
	for _, id := range ids {
		tree := b.Tree(id)
		if err := tree.Load(ctx); err != nil {
			return err
		}
		kinds := map[string]int{}
		collections, shapes := 0, 0
		for _, c := range tree.Children() {
			cn, ok := c.(*roitree.CollectionNode)
			if !ok {
				continue
			}
			collections++
			for _, s := range cn.ROIData().Shapes() {
				shapes++
				if k, err := s.Kind(); err == nil {
					kinds[string(k)]++
				}
			}
		}
		parts := make([]string, 0, len(kinds))
		for k, n := range kinds {
			parts = append(parts, fmt.Sprintf("%s=%d", k, n))
		}
		sort.Strings(parts)
		fmt.Printf("image %d: %d collections, %d shapes %s\n", id, collections, shapes, strings.Join(parts, " "))
	}
	return nil
}
