package main

// Developer tool: run the frame extraction and vision prompt pipeline
// against a local video without going through the HTTP surface.
//
//   go run ./cmd/prompttest -video sparring.mp4 -prompt-only
//   GOOGLE_API_KEY=... go run ./cmd/prompttest -video sparring.mp4

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bjj-backend/internal/analyses"
	"bjj-backend/internal/frames"
	"bjj-backend/internal/shared/config"
	"bjj-backend/internal/vision"
	"bjj-backend/internal/vision/gemini"
)

func main() {
	cfg := config.Load()

	videoPath := flag.String("video", "", "Path to a sparring video file")
	userDesc := flag.String("user", "person in the white gi", "How the user appears in the video")
	oppDesc := flag.String("opponent", "person in the blue gi", "How the opponent appears in the video")
	model := flag.String("model", cfg.GeminiModel, "Gemini model")
	promptOnly := flag.Bool("prompt-only", false, "Print the assembled prompt and exit without calling the model")
	outPath := flag.String("out", "", "Path to write raw JSON output (optional)")
	flag.Parse()

	if strings.TrimSpace(*videoPath) == "" {
		exitErr("video path is required")
	}

	ctx := context.Background()
	opener := frames.NewFFmpegOpener(
		cfg.FFmpegPath,
		cfg.FFprobePath,
		time.Duration(cfg.FrameTimeoutSeconds)*time.Second,
	)

	src, err := opener.Open(ctx, *videoPath)
	if err != nil {
		exitErr(fmt.Sprintf("open video: %v", err))
	}
	sampled, plan, err := frames.Sample(ctx, src)
	_ = src.Close()
	if err != nil {
		exitErr(fmt.Sprintf("sample frames: %v", err))
	}

	fmt.Fprintf(os.Stderr, "extracted %d/%d frames (start %d / middle %d / end %d) from %.1fs video\n",
		plan.Extracted, plan.Target, plan.Start, plan.Middle, plan.End, plan.Duration)

	prompt := vision.BuildPrompt(plan, sampled, *userDesc, *oppDesc)

	if *promptOnly {
		fmt.Println(prompt)
		return
	}

	client, err := gemini.NewClient(os.Getenv("GOOGLE_API_KEY"), *model)
	if err != nil {
		exitErr(err.Error())
	}

	images := make([][]byte, 0, len(sampled))
	for _, f := range sampled {
		images = append(images, f.JPEG)
	}

	rawText, err := client.AnalyzeSparring(ctx, vision.AnalyzeInput{
		Prompt: prompt,
		Images: images,
	})
	if err != nil {
		exitErr(fmt.Sprintf("vision analyze: %v", err))
	}

	result, err := analyses.ParseModelOutput(rawText)
	if err != nil {
		fmt.Fprintf(os.Stderr, "model output did not parse: %v\nraw response follows\n", err)
		fmt.Println(rawText)
		os.Exit(1)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		exitErr(fmt.Sprintf("encode result: %v", err))
	}

	pretty, err := prettyJSON(raw)
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}

	if _, err := os.Stdout.Write(pretty); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
	if len(pretty) == 0 || pretty[len(pretty)-1] != '\n' {
		_, _ = os.Stdout.Write([]byte("\n"))
	}
}

func prettyJSON(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
