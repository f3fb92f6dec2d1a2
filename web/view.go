// ABOUTME: JSON view types for the timeline API, with agent markdown rendered to sanitized-enough HTML.
// ABOUTME: Views are built fresh from store snapshots on every request or push; nothing is cached.
package web

import (
	"bytes"
	"log"
	"time"

	"github.com/yuin/goldmark"

	"github.com/CIRISAI/scoutgui/pipeline"
)

// markdown is the shared converter for agent message content. Raw HTML in
// the source is escaped by goldmark's default renderer.
var markdown = goldmark.New()

// timelineView is the payload of GET /api/timeline and of each pushed
// "timeline" frame.
type timelineView struct {
	RunID string             `json:"run_id"`
	Items []timelineItemView `json:"items"`
}

type timelineItemView struct {
	Kind      pipeline.ItemKind `json:"kind"`
	Timestamp time.Time         `json:"timestamp"`
	Message   *messageView      `json:"message,omitempty"`
	Task      *pipeline.Task    `json:"task,omitempty"`
}

type messageView struct {
	ID          string    `json:"id"`
	IsAgent     bool      `json:"is_agent"`
	Content     string    `json:"content"`
	ContentHTML string    `json:"content_html,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// timelineView projects the store into the wire view. Agent messages get
// their markdown rendered; user messages stay plain text.
func (s *Server) timelineView() timelineView {
	items := s.store.Timeline()

	view := timelineView{
		RunID: s.runID,
		Items: make([]timelineItemView, 0, len(items)),
	}
	for _, item := range items {
		iv := timelineItemView{
			Kind:      item.Kind,
			Timestamp: item.Timestamp,
			Task:      item.Task,
		}
		if item.Message != nil {
			mv := &messageView{
				ID:        item.Message.ID,
				IsAgent:   item.Message.IsAgent,
				Content:   item.Message.Content,
				Timestamp: item.Message.Timestamp,
			}
			if item.Message.IsAgent {
				mv.ContentHTML = renderMarkdown(item.Message.Content)
			}
			iv.Message = mv
		}
		view.Items = append(view.Items, iv)
	}
	return view
}

// renderMarkdown converts message markdown to HTML. On conversion failure it
// returns empty, which makes the page fall back to the plain text content.
func renderMarkdown(source string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		log.Printf("web markdown: conversion failed: %v", err)
		return ""
	}
	return buf.String()
}

func logTemplateError(err error) {
	log.Printf("web template: render failed: %v", err)
}
