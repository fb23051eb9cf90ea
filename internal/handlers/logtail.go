package handlers

import (
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/widyaops/confdeploy/internal/middleware"
	"github.com/widyaops/confdeploy/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: Add proper origin validation
	},
}

// maxInitialTail bounds the history sent when a client connects. The
// deploy log is append-only and unbounded.
const maxInitialTail = 64 * 1024

// LogTailHandler streams a target's deploy log over WebSocket: recent
// history first, then live appends until the client disconnects.
type LogTailHandler struct {
	targetService *services.TargetService
	deployService *services.DeployService
}

// NewLogTailHandler creates a new LogTailHandler instance.
func NewLogTailHandler(targetService *services.TargetService, deployService *services.DeployService) *LogTailHandler {
	return &LogTailHandler{
		targetService: targetService,
		deployService: deployService,
	}
}

// HandleWebSocket tails a target's deploy log.
// GET /api/targets/:id/log
func (h *LogTailHandler) HandleWebSocket(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	target, err := h.targetService.GetTargetByID(c.Param("id"))
	if err != nil {
		if err == services.ErrTargetNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "target not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	logPath := h.deployService.PipelineTarget(target).LogPath

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[LogTail] Failed to upgrade to WebSocket: %v", err)
		return
	}
	defer func() { _ = ws.Close() }()

	log.Printf("[LogTail] User %s tailing %s", user.Username, logPath)

	f, err := os.Open(logPath)
	if err != nil {
		_ = ws.WriteMessage(websocket.TextMessage, []byte("no deploy log yet\n"))
		if os.IsNotExist(err) {
			h.waitForFile(c, ws, logPath, &f)
		}
		if f == nil {
			return
		}
	}
	defer func() { _ = f.Close() }()

	offset := int64(0)
	if info, err := f.Stat(); err == nil && info.Size() > maxInitialTail {
		offset = info.Size() - maxInitialTail
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return
	}

	// Reads from the client only to detect disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	buf := make([]byte, 4096)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			for {
				n, err := f.Read(buf)
				if n > 0 {
					if werr := ws.WriteMessage(websocket.TextMessage, buf[:n]); werr != nil {
						return
					}
				}
				if err != nil {
					break // at EOF, wait for the next tick
				}
			}
		}
	}
}

// waitForFile polls until the deploy log appears or the client goes
// away, for targets that have never been deployed.
func (h *LogTailHandler) waitForFile(c *gin.Context, ws *websocket.Conn, logPath string, f **os.File) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			opened, err := os.Open(logPath)
			if err == nil {
				*f = opened
				return
			}
			// Ping so a dead client is noticed while waiting.
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
