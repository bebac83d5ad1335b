package console_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/tidwall/gjson"

	"github.com/luma/exar/console"
	"github.com/luma/exar/internal/exartest"
	"github.com/luma/exar/protocol"
)

var _ = Describe("Console", func() {
	var (
		server *exartest.Server
		con    *console.Console
		ts     *httptest.Server
	)

	BeforeEach(func() {
		var err error
		server, err = exartest.Start(exartest.Options{Username: "admin", Password: "secret"})
		Expect(err).To(Succeed())

		con = console.New(console.Options{
			ServerAddr: server.Addr(),
			Username:   "admin",
			Password:   "secret",
		})

		ts = httptest.NewServer(con.Handler())
	})

	AfterEach(func() {
		ts.Close()
		Expect(con.Close()).To(Succeed())
		Expect(server.Close()).To(Succeed())
	})

	do := func(method, path string, body interface{}) (int, []byte) {
		var reader io.Reader
		if body != nil {
			b, err := json.Marshal(body)
			Expect(err).To(Succeed())
			reader = bytes.NewReader(b)
		}

		req, err := http.NewRequest(method, ts.URL+path, reader)
		Expect(err).To(Succeed())
		req.Header.Set("Content-Type", "application/json")

		res, err := http.DefaultClient.Do(req)
		Expect(err).To(Succeed())
		defer res.Body.Close()

		data, err := io.ReadAll(res.Body)
		Expect(err).To(Succeed())

		return res.StatusCode, data
	}

	messages := func(id string) func() []string {
		return func() []string {
			status, body := do(http.MethodGet, "/connections/"+id+"/messages", nil)
			Expect(status).To(Equal(http.StatusOK))

			var lines []string
			Expect(json.Unmarshal(body, &lines)).To(Succeed())
			return lines
		}
	}

	connect := func(collection string) string {
		status, body := do(http.MethodPost, "/connections", map[string]string{"collection": collection})
		Expect(status).To(Equal(http.StatusCreated), string(body))

		return gjson.GetBytes(body, "id").String()
	}

	It("answers ping", func() {
		status, body := do(http.MethodGet, "/ping", nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(string(body)).To(Equal("pong"))
	})

	It("opens a connection and logs Connected", func() {
		id := connect("sensors")

		Expect(messages(id)()).To(Equal([]string{"Connected"}))

		status, body := do(http.MethodGet, "/connections", nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(gjson.GetBytes(body, "#").Int()).To(BeEquivalentTo(1))
		Expect(gjson.GetBytes(body, "0.collection").String()).To(Equal("sensors"))
		Expect(gjson.GetBytes(body, "0.connected").Bool()).To(BeTrue())
	})

	It("logs the error when the server rejects the credentials", func() {
		other := console.New(console.Options{
			ServerAddr: server.Addr(),
			Username:   "admin",
			Password:   "wrong",
		})
		defer other.Close()

		ts2 := httptest.NewServer(other.Handler())
		defer ts2.Close()

		res, err := http.Post(ts2.URL+"/connections", "application/json", strings.NewReader(`{"collection":"sensors"}`))
		Expect(err).To(Succeed())
		defer res.Body.Close()

		Expect(res.StatusCode).To(Equal(http.StatusUnprocessableEntity))

		body, err := io.ReadAll(res.Body)
		Expect(err).To(Succeed())

		id := gjson.GetBytes(body, "id").String()

		res2, err := http.Get(ts2.URL + "/connections/" + id + "/messages")
		Expect(err).To(Succeed())
		defer res2.Body.Close()

		log, err := io.ReadAll(res2.Body)
		Expect(err).To(Succeed())
		Expect(log).To(MatchJSON(`["Error: Server rejected Connect: Invalid credentials"]`))
	})

	It("publishes with space separated tags", func() {
		id := connect("sensors")

		status, body := do(http.MethodPost, "/connections/"+id+"/publish", map[string]string{
			"data": "temp=21",
			"tags": "sensor  room1",
		})
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"id":1}`))

		Expect(messages(id)()).To(Equal([]string{"Connected", "Published\t1"}))

		events, err := server.Events(context.Background(), "sensors")
		Expect(err).To(Succeed())
		Expect(events).To(HaveLen(1))
		Expect(events[0].Tags).To(Equal([]string{"sensor", "room1"}))
	})

	It("logs the events of a subscription", func() {
		for _, data := range []string{"a", "b", "c"} {
			_, err := server.Publish(context.Background(), "sensors", protocol.NewEvent(data, "sensor"))
			Expect(err).To(Succeed())
		}

		id := connect("sensors")

		status, _ := do(http.MethodPost, "/connections/"+id+"/subscribe", map[string]interface{}{
			"limit": 2,
			"tag":   "sensor",
		})
		Expect(status).To(Equal(http.StatusOK))

		Eventually(messages(id)).Should(HaveLen(5))

		lines := messages(id)()
		Expect(lines[:2]).To(Equal([]string{"Connected", "Subscribed"}))
		Expect(lines[2]).To(HavePrefix("Event\t1\t"))
		Expect(lines[3]).To(HavePrefix("Event\t2\t"))
		Expect(lines[4]).To(Equal("EndOfEventStream"))

		By("refusing requests while streaming")
		status, _ = do(http.MethodPost, "/connections/"+id+"/publish", map[string]string{"data": "late"})
		Expect(status).To(Equal(http.StatusConflict))
	})

	It("logs Disconnected when the server hangs up", func() {
		id := connect("sensors")

		Expect(server.Hangup()).To(Succeed())

		Eventually(messages(id)).Should(Equal([]string{"Connected", "Disconnected"}))
	})

	It("exports the message log of every connection", func() {
		first := connect("sensors")
		second := connect("doors")

		status, body := do(http.MethodGet, "/messages", nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{
			"` + first + `": {"messages": ["Connected"]},
			"` + second + `": {"messages": ["Connected"]}
		}`))
	})

	It("exports an empty object before any connection", func() {
		status, body := do(http.MethodGet, "/messages", nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{}`))
	})

	It("clears the message log", func() {
		id := connect("sensors")

		status, _ := do(http.MethodDelete, "/connections/"+id+"/messages", nil)
		Expect(status).To(Equal(http.StatusNoContent))
		Expect(messages(id)()).To(BeEmpty())
	})

	It("removes a connection", func() {
		id := connect("sensors")

		status, _ := do(http.MethodDelete, "/connections/"+id, nil)
		Expect(status).To(Equal(http.StatusNoContent))

		status, body := do(http.MethodGet, "/connections", nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`[]`))

		status, _ = do(http.MethodGet, "/connections/"+id+"/messages", nil)
		Expect(status).To(Equal(http.StatusNotFound))
	})

	It("rejects requests without a collection", func() {
		status, _ := do(http.MethodPost, "/connections", map[string]string{})
		Expect(status).To(Equal(http.StatusBadRequest))
	})

	It("streams new log lines over a websocket", func() {
		id := connect("sensors")

		url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/connections/" + id + "/stream"
		ws, _, err := websocket.DefaultDialer.Dial(url, nil)
		Expect(err).To(Succeed())
		defer ws.Close()

		status, _ := do(http.MethodPost, "/connections/"+id+"/publish", map[string]string{"data": "temp=21"})
		Expect(status).To(Equal(http.StatusOK))

		Expect(ws.SetReadDeadline(time.Now().Add(2 * time.Second))).To(Succeed())

		_, line, err := ws.ReadMessage()
		Expect(err).To(Succeed())
		Expect(string(line)).To(Equal("Published\t1"))
	})

	It("serves the client metrics", func() {
		connect("sensors")

		status, body := do(http.MethodGet, "/metrics", nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring(`exar_client_messages_sent_total{kind="Connect"} 1`))
	})
})
