package main

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

const arrowWordPrompt = `Analyser dette bildet av et kryssord med ledetekster i rutene (pilkryssord).

Trekk ut hele strukturen som JSON i dette formatet:
{
  "title": "<tittel hvis synlig, ellers tom>",
  "rows": <antall rader>,
  "cols": <antall kolonner>,
  "cells": [
    [
      {"black": true, "definitions": [{"text": "Ledetekst", "direction": "right"}]},
      {"black": false},
      ...
    ],
    ...
  ]
}

Regler:
- En rute med tekst og/eller pil er en ledetekstrute: "black": true med "definitions".
- "direction" er "right" hvis pilen peker mot høyre, "down" hvis den peker nedover.
- En ledetekstrute kan ha 1 eller 2 ledetekster.
- Tomme ruter der man skriver har "black": false og ingen "definitions".
- En rute som verken er skriverute eller har ledetekst har "black": true og ingen "definitions".
- Svar KUN med JSON, uten kommentarer eller markdown.`

const traditionalPrompt = `Analyser dette bildet av et tradisjonelt kryssord med svarte ruter og nummererte ledetekster.

Trekk ut hele strukturen som JSON i dette formatet:
{
  "title": "<tittel hvis synlig, ellers tom>",
  "rows": <antall rader>,
  "cols": <antall kolonner>,
  "grid": ["<én streng per rad>", ...],
  "clues": {
    "across": [{"number": 1, "text": "Ledetekst"}],
    "down": [{"number": 1, "text": "Ledetekst"}]
  }
}

Regler:
- Hver streng i "grid" har nøyaktig "cols" tegn.
- "#" er en svart rute, "_" er en tom hvit rute, en bokstav er en utfylt hvit rute.
- "across" er vannrett, "down" er loddrett. Behold numrene slik de står trykt.
- Svar KUN med JSON, uten kommentarer eller markdown.`

// Analyzer turns a photo into a puzzle structure.
type Analyzer interface {
	AnalyzeArrowWord(ctx context.Context, imageData []byte, mimeType string) (*extractedArrowWord, error)
	AnalyzeTraditional(ctx context.Context, imageData []byte, mimeType string) (*extractedTraditional, error)
}

// AnalyzeArrowWord extracts an arrow-word grid from a photo.
func (g *GeminiClient) AnalyzeArrowWord(ctx context.Context, imageData []byte, mimeType string) (*extractedArrowWord, error) {
	var out extractedArrowWord
	if err := g.generateJSON(ctx, arrowWordPrompt, imageData, mimeType, &out); err != nil {
		return nil, err
	}
	if out.Rows == 0 || out.Cols == 0 || len(out.Cells) == 0 {
		return nil, fmt.Errorf("invalid grid: %dx%d with %d cell rows", out.Rows, out.Cols, len(out.Cells))
	}
	return &out, nil
}

// AnalyzeTraditional extracts a blocked-cell grid and its clue lists from a
// photo.
func (g *GeminiClient) AnalyzeTraditional(ctx context.Context, imageData []byte, mimeType string) (*extractedTraditional, error) {
	var out extractedTraditional
	if err := g.generateJSON(ctx, traditionalPrompt, imageData, mimeType, &out); err != nil {
		return nil, err
	}
	if out.Rows == 0 || out.Cols == 0 || len(out.Grid) == 0 {
		return nil, fmt.Errorf("invalid grid: %dx%d with %d rows", out.Rows, out.Cols, len(out.Grid))
	}
	return &out, nil
}

func (g *GeminiClient) generateJSON(ctx context.Context, prompt string, imageData []byte, mimeType string, out any) error {
	resp, err := g.client.Models.GenerateContent(ctx, g.modelName,
		[]*genai.Content{{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: imageData}},
			},
		}},
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr(float32(0.1)),
			TopP:             genai.Ptr(float32(1)),
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return fmt.Errorf("empty gemini response")
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("parse grid JSON: %w\nraw response: %s", err, text)
	}
	return nil
}
