package server

import (
	"context"
	"log"
	"net"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ListenWithIPv6Fallback binds the server on a dual-stack IPv6 socket first
// and falls back to IPv4 when the host has no IPv6 support.
func ListenWithIPv6Fallback(app *fiber.App, port string, startupStart time.Time) error {
	addrIPv6 := "[::]:" + port
	log.Printf("🌐 Binding HTTP server on %s (dual-stack preferred)", addrIPv6)

	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			if network != "tcp6" {
				return nil
			}

			var sockErr error
			if controlErr := c.Control(func(fd uintptr) {
				sockErr = syscall.SetsockoptInt(int(fd), syscall.IPPROTO_IPV6, syscall.IPV6_V6ONLY, 0)
			}); controlErr != nil {
				return controlErr
			}
			return sockErr
		},
	}

	ln6, err := lc.Listen(context.Background(), "tcp6", addrIPv6)
	if err == nil {
		log.Printf("✅ Listening on %s after %v", addrIPv6, time.Since(startupStart))
		return app.Listener(ln6)
	}

	log.Printf("⚠️ IPv6 bind on %s failed (%v), retrying on IPv4", addrIPv6, err)

	addrIPv4 := "0.0.0.0:" + port
	ln4, err := net.Listen("tcp4", addrIPv4)
	if err != nil {
		log.Printf("💥 [FATAL] Could not bind %s on IPv6 or IPv4: %v", port, err)
		return err
	}

	log.Printf("✅ Listening on %s (IPv4 only) after %v", addrIPv4, time.Since(startupStart))
	return app.Listener(ln4)
}
