package controller

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/downfa11-org/logstream/util"
	"github.com/google/uuid"
)

// Server accepts client connections and answers one frame with one frame.
type Server struct {
	handler  *CommandHandler
	listener net.Listener

	mu     sync.Mutex
	conns  map[string]net.Conn
	closed bool
	wg     sync.WaitGroup
}

func NewServer(handler *CommandHandler) *Server {
	return &Server{handler: handler, conns: make(map[string]net.Conn)}
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop(ln)
	util.Info("broker listening on %s", ln.Addr())
	return nil
}

// Addr is the bound listen address, useful with port 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			util.Warn("accept failed: %v", err)
			continue
		}

		id := uuid.New().String()
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[id] = conn
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(id, conn)
	}
}

func (s *Server) handleConnection(id string, conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
		util.Debug("connection %s closed", id)
	}()

	util.Debug("new connection %s from %s", id, conn.RemoteAddr())
	ctx := &ClientContext{}
	for {
		data, err := util.ReadWithLength(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				util.Debug("read from %s failed: %v", id, err)
			}
			return
		}

		var resp []byte
		if util.IsBatchFrame(data) {
			resp = s.handler.HandleBatchMessage(data, ctx)
		} else {
			_, cmd, err := util.DecodeMessage(data)
			if err != nil {
				resp = []byte(fmt.Sprintf("ERROR: %v", err))
			} else {
				resp = s.handler.HandleCommand(cmd, ctx)
			}
		}

		if err := util.WriteWithLength(conn, resp); err != nil {
			util.Debug("write to %s failed: %v", id, err)
			return
		}
	}
}

// CloseClients drops every open connection but keeps listening.
func (s *Server) CloseClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
}

// Close stops the listener, closes all connections and waits for their handlers.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for _, c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}
