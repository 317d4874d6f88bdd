package alerts

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"sysadvisor/app/internal/config"
	"sysadvisor/app/internal/crypto"
	"sysadvisor/app/internal/database"
	"sysadvisor/app/internal/models"
)

// --------------- helpers ---------------

func testEvent(cpu, mem float64) models.AlertEvent {
	snap := &models.Snapshot{
		TakenAt:       time.Date(2025, 5, 26, 19, 0, 0, 0, time.UTC),
		CPUPercent:    cpu,
		MemoryPercent: mem,
	}
	th := models.DefaultThresholds()
	return models.AlertEvent{
		Snapshot:   snap,
		Thresholds: th,
		Report:     "SYSTEM MONITOR - 2025-05-26T19:00:00Z\nCPU Usage: 95.0%\n",
		Exceeded:   Evaluate(snap, th),
	}
}

func readySMTP(host string, port int) config.SMTPConfig {
	return config.SMTPConfig{
		Host:     host,
		Port:     port,
		Username: "monitor@example.com",
		Password: "app-password",
		From:     "monitor@example.com",
		To:       []string{"ops@example.com"},
		Timeout:  5 * time.Second,
	}
}

type recordingTransport struct {
	mu   sync.Mutex
	msgs []*Message
	err  error
}

func (r *recordingTransport) Send(_ context.Context, msg *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

// fakeSMTP is a minimal in-process SMTP server that records one session.
type fakeSMTP struct {
	ln         net.Listener
	rejectRcpt bool

	mu       sync.Mutex
	commands []string
	data     string
}

func startFakeSMTP(t *testing.T, rejectRcpt bool) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeSMTP{ln: ln, rejectRcpt: rejectRcpt}
	go f.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return f
}

func (f *fakeSMTP) port() int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

func (f *fakeSMTP) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeSMTP) handle(conn net.Conn) {
	defer conn.Close()
	tp := textproto.NewConn(conn)
	_ = tp.PrintfLine("220 fake.local ESMTP")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.commands = append(f.commands, line)
		f.mu.Unlock()

		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		switch verb {
		case "EHLO", "HELO":
			_ = tp.PrintfLine("250-fake.local")
			_ = tp.PrintfLine("250 AUTH PLAIN")
		case "AUTH":
			_ = tp.PrintfLine("235 2.7.0 Authentication successful")
		case "MAIL":
			_ = tp.PrintfLine("250 OK")
		case "RCPT":
			if f.rejectRcpt {
				_ = tp.PrintfLine("550 no such user")
				continue
			}
			_ = tp.PrintfLine("250 OK")
		case "DATA":
			_ = tp.PrintfLine("354 go ahead")
			body, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			f.mu.Lock()
			f.data = string(body)
			f.mu.Unlock()
			_ = tp.PrintfLine("250 queued")
		case "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("502 not implemented")
		}
	}
}

func (f *fakeSMTP) snapshot() ([]string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...), f.data
}

// --------------- Evaluate ---------------

func TestEvaluate_CPUOnly(t *testing.T) {
	ev := testEvent(95, 50)
	if !ev.Exceeded.CPU || ev.Exceeded.Memory {
		t.Errorf("exceeded = %+v, want cpu only", ev.Exceeded)
	}
}

func TestEvaluate_EqualDoesNotTrigger(t *testing.T) {
	snap := &models.Snapshot{CPUPercent: 90, MemoryPercent: 95}
	if ex := Evaluate(snap, models.DefaultThresholds()); ex.Any() {
		t.Errorf("values equal to thresholds should not trigger: %+v", ex)
	}
}

func TestEvaluate_JustAbove(t *testing.T) {
	snap := &models.Snapshot{CPUPercent: 90.0001, MemoryPercent: 95.0001}
	ex := Evaluate(snap, models.DefaultThresholds())
	if !ex.CPU || !ex.Memory {
		t.Errorf("raw values above thresholds should trigger: %+v", ex)
	}
}

func TestEvaluate_Property(t *testing.T) {
	th := models.Thresholds{CPUPercent: 50, MemoryPercent: 60}
	for cpu := 0.0; cpu <= 100; cpu += 2.5 {
		for mem := 0.0; mem <= 100; mem += 2.5 {
			ex := Evaluate(&models.Snapshot{CPUPercent: cpu, MemoryPercent: mem}, th)
			if ex.Any() != (cpu > th.CPUPercent || mem > th.MemoryPercent) {
				t.Fatalf("cpu=%v mem=%v: exceeded=%+v", cpu, mem, ex)
			}
		}
	}
}

// --------------- Subject / Body ---------------

func TestSubject(t *testing.T) {
	at := time.Date(2025, 5, 26, 19, 4, 0, 0, time.UTC)
	tests := []struct {
		ex   models.Exceeded
		want string
	}{
		{models.Exceeded{CPU: true}, "System Alert - High CPU - 2025-05-26 19:04"},
		{models.Exceeded{Memory: true}, "System Alert - High Memory - 2025-05-26 19:04"},
		{models.Exceeded{CPU: true, Memory: true}, "System Alert - High CPU and Memory - 2025-05-26 19:04"},
	}
	for _, tt := range tests {
		if got := Subject(tt.ex, at); got != tt.want {
			t.Errorf("Subject(%+v) = %q, want %q", tt.ex, got, tt.want)
		}
	}
}

func TestBody_SummaryThenReport(t *testing.T) {
	ev := testEvent(95, 50)
	body := Body(ev)
	if !strings.HasPrefix(body, "CPU usage 95.0% exceeds threshold 90.0%\n") {
		t.Errorf("body should start with summary: %q", body)
	}
	if strings.Contains(body, "Memory usage") {
		t.Error("memory line should be absent when memory is below threshold")
	}
	if !strings.HasSuffix(body, ev.Report) {
		t.Error("body should end with the full report")
	}
}

// --------------- Dispatcher ---------------

func TestSend_MissingCredentials(t *testing.T) {
	tr := &recordingTransport{}
	d := NewDispatcher(config.SMTPConfig{Host: "smtp.example.com", Port: 587}, tr, "email-monitor")

	err := d.Send(context.Background(), testEvent(95, 50))
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
	for _, k := range []string{"EMAIL_USERNAME", "EMAIL_PASSWORD", "EMAIL_TO"} {
		if !strings.Contains(err.Error(), k) {
			t.Errorf("error should name %s: %v", k, err)
		}
	}
	if len(tr.msgs) != 0 {
		t.Error("transport should not be called without credentials")
	}
}

func TestSend_UnopenablePassword(t *testing.T) {
	tr := &recordingTransport{}
	cfg := readySMTP("smtp.example.com", 587)
	cfg.Password = ""
	cfg.SecretErr = fmt.Errorf("EMAIL_PASSWORD: %w", crypto.ErrNoKey)
	d := NewDispatcher(cfg, tr, "email-monitor")

	err := d.Send(context.Background(), testEvent(95, 50))
	if !errors.Is(err, ErrDelivery) || !errors.Is(err, crypto.ErrNoKey) {
		t.Fatalf("expected ErrDelivery naming the sealed password, got %v", err)
	}
	if len(tr.msgs) != 0 {
		t.Error("transport should not be called without a usable password")
	}
}

func TestSend_TransportFailureNotRetried(t *testing.T) {
	tr := &recordingTransport{err: errors.New("connection refused")}
	d := NewDispatcher(readySMTP("smtp.example.com", 587), tr, "email-monitor")

	err := d.Send(context.Background(), testEvent(95, 50))
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
	if len(tr.msgs) != 1 {
		t.Errorf("expected exactly one attempt, got %d", len(tr.msgs))
	}
}

func TestSend_Success(t *testing.T) {
	tr := &recordingTransport{}
	d := NewDispatcher(readySMTP("smtp.example.com", 587), tr, "email-monitor")
	d.now = func() time.Time { return time.Date(2025, 5, 26, 19, 0, 0, 0, time.UTC) }

	if err := d.Send(context.Background(), testEvent(95, 50)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(tr.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(tr.msgs))
	}
	msg := tr.msgs[0]
	if msg.Subject != "System Alert - High CPU - 2025-05-26 19:00" {
		t.Errorf("subject = %q", msg.Subject)
	}
	if msg.From != "monitor@example.com" || msg.To[0] != "ops@example.com" {
		t.Errorf("addresses = %s -> %v", msg.From, msg.To)
	}
}

func TestSend_JournalsOutcome(t *testing.T) {
	if err := database.Init(":memory:"); err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	d := NewDispatcher(readySMTP("smtp.example.com", 587), &recordingTransport{err: errors.New("boom")}, "email-monitor")
	_ = d.Send(context.Background(), testEvent(95, 50))

	logs, err := database.GetLogs(10, database.LogLevelError, database.LogCategoryEmail, "email-monitor")
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || !strings.Contains(logs[0].Details, "boom") {
		t.Errorf("expected one error journal entry, got %+v", logs)
	}
}

// --------------- Message ---------------

func TestMessageBytes_Headers(t *testing.T) {
	msg := &Message{
		From:    "monitor@example.com",
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "System Alert - High CPU - 2025-05-26 19:00",
		Body:    "line one\nline two\n",
		Date:    time.Date(2025, 5, 26, 19, 0, 0, 0, time.UTC),
	}
	raw := string(msg.Bytes())

	for _, want := range []string{
		"From: monitor@example.com\r\n",
		"To: a@example.com, b@example.com\r\n",
		"Subject: System Alert - High CPU - 2025-05-26 19:00\r\n",
		"Content-Type: text/plain; charset=UTF-8\r\n",
		"@example.com>\r\n",
		"\r\n\r\nline one\r\nline two\r\n",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("message missing %q:\n%s", want, raw)
		}
	}
	if !strings.Contains(raw, "Message-ID: <") {
		t.Error("message id missing")
	}
}

func TestMessageBytes_UniqueMessageID(t *testing.T) {
	msg := &Message{From: "m@example.com", To: []string{"o@example.com"}}
	if string(msg.Bytes()) == string(msg.Bytes()) {
		t.Error("each render should carry a new Message-ID")
	}
}

// --------------- SMTP transport ---------------

func TestSMTPTransport_DeliversFullReport(t *testing.T) {
	srv := startFakeSMTP(t, false)
	cfg := readySMTP("127.0.0.1", srv.port())
	d := NewDispatcher(cfg, nil, "email-monitor")

	ev := testEvent(95, 50)
	if err := d.Send(context.Background(), ev); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	cmds, data := srv.snapshot()
	joined := strings.Join(cmds, "\n")
	for _, want := range []string{"AUTH PLAIN", "MAIL FROM:<monitor@example.com>", "RCPT TO:<ops@example.com>", "DATA", "QUIT"} {
		if !strings.Contains(joined, want) {
			t.Errorf("session missing %q:\n%s", want, joined)
		}
	}
	body := strings.ReplaceAll(data, "\r\n", "\n")
	if !strings.Contains(body, ev.Report) {
		t.Errorf("delivered body lacks report:\n%s", body)
	}
	if !strings.Contains(body, "Subject: System Alert - High CPU - ") {
		t.Errorf("delivered message lacks subject:\n%s", body)
	}
}

func TestSMTPTransport_RecipientRejected(t *testing.T) {
	srv := startFakeSMTP(t, true)
	d := NewDispatcher(readySMTP("127.0.0.1", srv.port()), nil, "email-monitor")

	if err := d.Send(context.Background(), testEvent(95, 50)); !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
}

func TestSMTPTransport_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	d := NewDispatcher(readySMTP("127.0.0.1", port), nil, "email-monitor")
	if err := d.Send(context.Background(), testEvent(95, 50)); !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
}

func TestSMTPTransport_TimeoutBounded(t *testing.T) {
	// A server that accepts but never greets.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = bufio.NewReader(conn).ReadString('\n')
	}()

	cfg := readySMTP("127.0.0.1", ln.Addr().(*net.TCPAddr).Port)
	cfg.Timeout = 200 * time.Millisecond
	d := NewDispatcher(cfg, nil, "email-monitor")

	start := time.Now()
	err = d.Send(context.Background(), testEvent(95, 50))
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("send not bounded by timeout: %v", elapsed)
	}
}

func TestSMTPTransport_ImplicitTLSSilentServerBounded(t *testing.T) {
	// Completes the TLS handshake, then never sends the greeting.
	certSrv := httptest.NewTLSServer(http.NotFoundHandler())
	defer certSrv.Close()
	ln, err := tls.Listen("tcp", "127.0.0.1:0", certSrv.TLS.Clone())
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if err := conn.(*tls.Conn).Handshake(); err != nil {
			return
		}
		_, _ = io.Copy(io.Discard, conn)
	}()

	tr := &SMTPTransport{
		Host:        "127.0.0.1",
		Port:        ln.Addr().(*net.TCPAddr).Port,
		SkipVerify:  true,
		ImplicitTLS: true,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- tr.Send(ctx, &Message{From: "a@example.com", To: []string{"b@example.com"}, Date: time.Now()})
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error from a silent server")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("send not bounded by the context deadline")
	}
}

func TestNewSMTPTransport(t *testing.T) {
	tr := NewSMTPTransport(config.SMTPConfig{Host: " smtp.gmail.com ", Port: 587, Username: "u"})
	if tr.Host != "smtp.gmail.com" || tr.Port != 587 || tr.Username != "u" || tr.ImplicitTLS {
		t.Errorf("unexpected transport %+v", tr)
	}
	if !NewSMTPTransport(config.SMTPConfig{Host: "smtp.gmail.com", Port: 465}).ImplicitTLS {
		t.Error("port 465 should use implicit TLS")
	}
}
