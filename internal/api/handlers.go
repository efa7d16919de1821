// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api exposes the audio match pipeline over HTTP.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/trend-audio-matcher/internal/core/model"
	"github.com/jaycherian/trend-audio-matcher/internal/core/services"
	"github.com/jaycherian/trend-audio-matcher/internal/core/workflow"
)

const uploadField = "file"

// Handlers serves uploads, published artifacts and the wake probe.
type Handlers struct {
	Pipeline    *workflow.AudioMatchWorkflow
	Ingress     *services.Ingress
	DownloadDir string
}

// AudioRouter registers the pipeline routes on r. downloadRoute is the path
// local artifacts are served under, normally "/downloads".
func AudioRouter(r gin.IRouter, h *Handlers, downloadRoute string) {
	if downloadRoute == "" {
		downloadRoute = "/downloads"
	}
	r.POST("/upload", h.Upload)
	r.GET(downloadRoute+"/:name", h.Download)
	r.GET("/wake", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "awake"})
	})
}

// Upload runs the pipeline on the uploaded video. With the debug or stream
// flag set the progress lines are streamed as plain text; otherwise the
// response is the audio file itself.
func (h *Handlers) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile(uploadField)
	if err != nil {
		pe := model.NewPipelineError(model.StageIngress, fmt.Errorf("%w: missing %q part: %v", model.ErrInvalidInput, uploadField, err))
		c.JSON(http.StatusBadRequest, gin.H{"error": pe.Error()})
		return
	}
	defer file.Close()

	job, err := h.Ingress.Store(header.Filename, file)
	if err != nil {
		pe := model.NewPipelineError(model.StageIngress, err)
		slog.ErrorContext(c, "failed to store upload", "file", header.Filename, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": pe.Error()})
		return
	}
	slog.InfoContext(c, "upload stored", "upload_id", job.ID, "file", job.OriginalFilename, "size", job.Size, "mime", job.MIMEType)

	if queryFlag(c, "stream") || queryFlag(c, "debug") {
		h.stream(c, job)
		return
	}

	artifact, err := h.Pipeline.Run(c.Request.Context(), job)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Type", "audio/mpeg")
	c.FileAttachment(artifact.LocalFilePath, artifact.FileName)
}

// stream writes one line per notification, flushing after each. A client that
// goes away stops the writes but not the run.
func (h *Handlers) stream(c *gin.Context, job *model.UploadJob) {
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	run := h.Pipeline.Start(c.Request.Context(), job)
	for p := range run.Notifications() {
		if _, err := fmt.Fprintln(c.Writer, p.Line()); err != nil {
			slog.WarnContext(c, "stream client went away", "run_id", run.ID, "error", err)
			return
		}
		c.Writer.Flush()
	}
}

// Download serves a published artifact from the download directory.
func (h *Handlers) Download(c *gin.Context) {
	name := filepath.Base(c.Param("name"))
	if name == "." || name == string(filepath.Separator) {
		c.Status(http.StatusNotFound)
		return
	}
	localPath := filepath.Join(h.DownloadDir, name)
	if info, err := os.Stat(localPath); err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	c.FileAttachment(localPath, name)
}

func queryFlag(c *gin.Context, name string) bool {
	v, ok := c.GetQuery(name)
	if !ok {
		return false
	}
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
