package mail

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/toftewellness/wellness-api/pkg/config"
	"github.com/toftewellness/wellness-api/pkg/metrics"
)

func TestNewSender(t *testing.T) {
	tests := []struct {
		name         string
		cfg          config.Mail
		expectedAddr string
		expectedName string
		expectedTry  int
	}{
		{
			name: "explicit sender",
			cfg: config.Mail{
				Host:          "smtp.example.com",
				Port:          587,
				User:          "user",
				Password:      "secret",
				SenderAddress: "hello@example.com",
				SenderName:    "Example",
				RetryCount:    5,
			},
			expectedAddr: "hello@example.com",
			expectedName: "Example",
			expectedTry:  5,
		},
		{
			name:         "defaults",
			cfg:          config.Mail{Host: "smtp.example.com", Port: 25},
			expectedAddr: "noreply@toftewellness.com",
			expectedName: "Tofte Wellness",
			expectedTry:  3,
		},
		{
			name:         "insecure skip verify",
			cfg:          config.Mail{Host: "smtp.internal", Port: 25, InsecureSkipVerify: true},
			expectedAddr: "noreply@toftewellness.com",
			expectedName: "Tofte Wellness",
			expectedTry:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSender(tt.cfg, zaptest.NewLogger(t).Sugar())
			assert.Equal(t, tt.cfg.Host, s.GetHost())
			assert.Equal(t, tt.cfg.Port, s.GetPort())

			impl, ok := s.(*sender)
			require.True(t, ok)
			assert.Equal(t, tt.expectedAddr, impl.senderAddress)
			assert.Equal(t, tt.expectedName, impl.senderName)
			assert.Equal(t, tt.expectedTry, impl.retryCount)
			assert.Equal(t, 100, impl.retryBackoffMs)
			if tt.cfg.InsecureSkipVerify {
				require.NotNil(t, impl.dialer.TLSConfig)
				assert.True(t, impl.dialer.TLSConfig.InsecureSkipVerify)
			}
		})
	}
}

// startTestSMTPServer accepts a single SMTP session and captures the DATA section.
func startTestSMTPServer(t *testing.T) (host string, port int, data func() string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		captured strings.Builder
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		fmt.Fprintf(conn, "220 localhost Test SMTP Service Ready\r\n")
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(line, "EHLO"), strings.HasPrefix(line, "HELO"):
				fmt.Fprintf(conn, "250-localhost Hello\r\n250 OK\r\n")
			case strings.HasPrefix(line, "DATA"):
				fmt.Fprintf(conn, "354 End data with <CR><LF>.<CR><LF>\r\n")
				for {
					dline, derr := r.ReadString('\n')
					if derr != nil || strings.TrimSpace(dline) == "." {
						break
					}
					mu.Lock()
					captured.WriteString(dline)
					mu.Unlock()
				}
				fmt.Fprintf(conn, "250 OK: queued as 12345\r\n")
			case strings.HasPrefix(line, "QUIT"):
				fmt.Fprintf(conn, "221 Bye\r\n")
				return
			default:
				fmt.Fprintf(conn, "250 OK\r\n")
			}
		}
	}()

	tcpAddr := ln.Addr().(*net.TCPAddr)
	data = func() string {
		mu.Lock()
		defer mu.Unlock()
		return captured.String()
	}
	stop = func() {
		ln.Close()
		wg.Wait()
	}
	return "127.0.0.1", tcpAddr.Port, data, stop
}

func TestSender_Send_HappyPath(t *testing.T) {
	host, port, data, stop := startTestSMTPServer(t)

	s := NewSender(config.Mail{Host: host, Port: port, SenderAddress: "site@example.com"}, zaptest.NewLogger(t).Sugar())
	before := testutil.ToFloat64(metrics.MailSendSuccess.WithLabelValues(host))

	err := s.Send([]string{"owner@example.com"}, "New inquiry", "<p>hello</p>")
	stop()

	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.MailSendSuccess.WithLabelValues(host)))
	assert.Contains(t, data(), "Subject: New inquiry")
	assert.Contains(t, data(), "owner@example.com")
}

func TestSender_Send_FailsAfterRetries(t *testing.T) {
	// reserve a port and close it so dialing is refused
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	s := NewSender(config.Mail{Host: "127.0.0.1", Port: port, RetryCount: 1, RetryBackoffMs: 1}, zaptest.NewLogger(t).Sugar())
	before := testutil.ToFloat64(metrics.MailSendFailure.WithLabelValues("127.0.0.1"))

	err = s.Send([]string{"owner@example.com"}, "subject", "body")
	assert.Error(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.MailSendFailure.WithLabelValues("127.0.0.1")))
}
