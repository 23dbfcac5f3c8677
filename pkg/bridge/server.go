// Package bridge is an HTTP service that owns a UDP socket and forwards base64 encoded
// packets to the vehicle, for clients that cannot speak UDP themselves.
package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"flyq/pkg/crtp"
	"flyq/pkg/transport"
)

const (
	Version     = "2.0.0"
	serviceName = "FLYQ Drone Controller API"

	writeTimeout = time.Second * 2
)

var errNotConnected = errors.New("not connected to drone")

type Server struct {
	logger *slog.Logger
	app    *fiber.App

	mx   sync.Mutex
	conn *net.UDPConn
	addr *net.UDPAddr
	sent uint64
}

func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{logger: logger}

	s.app = fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(cors.New())
	s.app.Use(s.logRequest)

	s.app.Get("/", s.root)
	s.app.Get("/api/", s.root)
	s.app.Get("/api/status", s.backendStatus)
	s.app.Post("/api/status", s.postStatus)

	drone := s.app.Group("/api/drone")
	drone.Post("/connect", s.connect)
	drone.Post("/send", s.send)
	drone.Post("/disconnect", s.disconnect)
	drone.Get("/status", s.status)

	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("bridge listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops the HTTP server and closes the drone socket.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	s.closeConn()
	return err
}

func (s *Server) root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "online",
		"service":   serviceName,
		"version":   Version,
		"timestamp": now(),
	})
}

func (s *Server) connect(c *fiber.Ctx) error {
	req := transport.ConnectRequest{IP: transport.DefaultHost, Port: transport.DefaultPort}

	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}

	if req.IP == "" || req.Port <= 0 || req.Port > 65535 {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid address %q:%d", req.IP, req.Port))
	}

	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(req.IP, strconv.Itoa(req.Port)))
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "connection failed: "+err.Error())
	}

	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "connection failed: "+err.Error())
	}

	s.mx.Lock()
	old := s.conn
	s.conn, s.addr = conn, addr
	s.mx.Unlock()

	if old != nil {
		_ = old.Close()
	}

	s.logger.Info("drone address set", "ip", req.IP, "port", req.Port)

	return c.JSON(transport.BridgeReply{
		Status:    "connected",
		IP:        req.IP,
		Port:      req.Port,
		Timestamp: now(),
	})
}

func (s *Server) send(c *fiber.Ctx) error {
	var req transport.SendRequest

	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	s.mx.Lock()
	conn, addr := s.conn, s.addr
	s.mx.Unlock()

	if conn == nil || addr == nil {
		return fiber.NewError(fiber.StatusBadRequest, errNotConnected.Error())
	}

	pkt, err := crtp.FromBase64(req.Data)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "bad packet: "+err.Error())
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "send failed: "+err.Error())
	}

	n, err := conn.WriteToUDP(pkt, addr)
	if err != nil {
		s.logger.Error("send failed", "error", err, "packet", crtp.Hex(pkt))
		return fiber.NewError(fiber.StatusInternalServerError, "send failed: "+err.Error())
	}

	s.mx.Lock()
	s.sent++
	s.mx.Unlock()

	s.logger.Debug("forwarded", "packet", crtp.Hex(pkt))

	return c.JSON(transport.BridgeReply{
		Status:    "sent",
		Bytes:     n,
		Timestamp: now(),
	})
}

func (s *Server) disconnect(c *fiber.Ctx) error {
	s.closeConn()
	s.logger.Info("drone disconnected")

	return c.JSON(transport.BridgeReply{
		Status:    "disconnected",
		Timestamp: now(),
	})
}

func (s *Server) status(c *fiber.Ctx) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	st := fiber.Map{
		"connected": s.conn != nil && s.addr != nil,
		"timestamp": now(),
	}

	if s.addr != nil {
		st["address"] = s.addr.IP.String()
		st["port"] = s.addr.Port
		st["sent"] = s.sent
	}

	return c.JSON(st)
}

// older clients poll these
func (s *Server) backendStatus(c *fiber.Ctx) error {
	return c.JSON([]fiber.Map{{
		"id":          "backend-1",
		"client_name": "FLYQ_Backend",
		"timestamp":   now(),
		"status":      "running",
	}})
}

func (s *Server) postStatus(c *fiber.Ctx) error {
	req := struct {
		ClientName string `json:"client_name"`
	}{ClientName: "FLYQ_Controller"}

	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}

	return c.JSON(fiber.Map{
		"id":          "status-1",
		"client_name": req.ClientName,
		"timestamp":   now(),
	})
}

func (s *Server) closeConn() {
	s.mx.Lock()
	conn := s.conn
	s.conn, s.addr = nil, nil
	s.mx.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

func (s *Server) logRequest(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	s.logger.Debug("request", "method", c.Method(), "path", c.Path(),
		"status", c.Response().StatusCode(), "took", time.Since(start))

	return err
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}

	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(transport.BridgeReply{
		Status:    "error",
		Detail:    err.Error(),
		Timestamp: now(),
	})
}

func now() string {
	return time.Now().Format(time.RFC3339Nano)
}
