// Package dashboard serves a live view of a training run: the metric
// history as JSON, the current curves as SVG, and a websocket stream of
// epoch reports.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/born-ml/coursework/internal/report"
)

// sendBuffer is the number of reports queued per client before the
// client is considered too slow and dropped.
const sendBuffer = 16

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Server holds the run history and the connected websocket clients.
type Server struct {
	title  string
	router *mux.Router

	mu      sync.Mutex
	history report.History
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan report.Epoch
}

// New creates a dashboard for a run called title.
func New(title string) *Server {
	s := &Server{
		title:   title,
		clients: make(map[*client]struct{}),
	}
	r := mux.NewRouter()
	r.HandleFunc("/", s.index()).Methods(http.MethodGet)
	r.HandleFunc("/history", s.historyJSON()).Methods(http.MethodGet)
	r.HandleFunc("/plot/{metric:[a-z_]+}.svg", s.plot()).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.stream())
	s.router = r
	return s
}

// Handler returns the HTTP handler of the dashboard.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Publish records e and forwards it to every connected client. A client
// whose queue is full is disconnected.
func (s *Server) Publish(e report.Epoch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Add(e)
	for c := range s.clients {
		select {
		case c.send <- e:
		default:
			s.dropLocked(c)
		}
	}
}

// History returns a copy of the reports published so far.
func (s *Server) History() *report.History {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Clone()
}

// NumClients returns the number of connected websocket clients.
func (s *Server) NumClients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ListenAndServe serves the dashboard on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.closeAll()
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start creates a dashboard and serves it on addr in the background until
// ctx is cancelled. The returned channel yields the serve error, or nil,
// and is then closed.
func Start(ctx context.Context, title, addr string) (*Server, <-chan error) {
	s := New(title)
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- s.ListenAndServe(ctx, addr)
	}()
	return s, done
}

func (s *Server) dropLocked(c *client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(c)
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		s.dropLocked(c)
	}
}

// Handler function for the index page
func (s *Server) index() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		data := struct {
			Title   string
			Metrics []string
		}{s.title, s.history.Names()}
		s.mu.Unlock()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := indexTemplate.Execute(w, data); err != nil {
			log.Println("dashboard: index:", err)
		}
	}
}

// Handler function for the JSON history
func (s *Server) historyJSON() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		h := s.History()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(h); err != nil {
			log.Println("dashboard: history:", err)
		}
	}
}

// Handler function for a metric curve
func (s *Server) plot() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		metric := mux.Vars(r)["metric"]
		series := s.History().Series(metric, metric)
		if len(series.X) == 0 {
			http.Error(w, "no data for metric "+metric, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		if err := report.WriteCurves(w, "svg", "Epoch", metric, series); err != nil {
			log.Println("dashboard: plot:", err)
		}
	}
}

// Handler function for the websocket stream
func (s *Server) stream() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("dashboard: websocket upgrade:", err)
			return
		}
		c := &client{conn: conn, send: make(chan report.Epoch, sendBuffer)}
		s.mu.Lock()
		s.clients[c] = struct{}{}
		s.mu.Unlock()

		go s.readLoop(c)
		s.writeLoop(c)
	}
}

// writeLoop sends queued reports until the client is dropped.
func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()
	for e := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(e); err != nil {
			s.drop(c)
			break
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// readLoop discards client messages and drops the client on disconnect.
func (s *Server) readLoop(c *client) {
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			s.drop(c)
			return
		}
	}
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>epoch <span id="epoch">-</span></p>
<div id="plots">
{{range .Metrics}}<img class="plot" data-metric="{{.}}" src="/plot/{{.}}.svg">
{{end}}</div>
<pre id="log"></pre>
<script>
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = (ev) => {
  const e = JSON.parse(ev.data);
  document.getElementById("epoch").textContent = e.epoch;
  document.getElementById("log").textContent += JSON.stringify(e) + "\n";
  const plots = document.getElementById("plots");
  for (const name of Object.keys(e.metrics)) {
    let img = plots.querySelector('img[data-metric="' + name + '"]');
    if (!img) {
      img = document.createElement("img");
      img.className = "plot";
      img.dataset.metric = name;
      plots.appendChild(img);
    }
    img.src = "/plot/" + name + ".svg?epoch=" + e.epoch;
  }
};
</script>
</body>
</html>
`))
