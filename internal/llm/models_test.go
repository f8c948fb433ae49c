package llm

import (
	"context"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("ListModels", func() {
	var (
		server *ghttp.Server
		models []Model
		err    error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
	})

	AfterEach(func() {
		server.Close()
	})

	When("listing OpenAI models", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/v1/models"),
				ghttp.VerifyHeaderKV("Authorization", "Bearer sk-test"),
				ghttp.RespondWith(http.StatusOK, `{"object":"list","data":[
					{"id":"gpt-4o","object":"model","created":1715367049,"owned_by":"system"},
					{"id":"dall-e-3","object":"model","created":1698785189,"owned_by":"system"}
				]}`),
			))
		})

		JustBeforeEach(func() {
			client, newErr := NewOpenAI("sk-test", "", server.URL(), 0)
			Expect(newErr).NotTo(HaveOccurred())
			models, err = client.ListModels(context.Background())
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the models sorted by ID", func() {
			Expect(models).To(HaveLen(2))
			Expect(models[0].ID).To(Equal("dall-e-3"))
			Expect(models[1].ID).To(Equal("gpt-4o"))
		})

		It("keeps the owner and creation time", func() {
			Expect(models[1].OwnedBy).To(Equal("system"))
			Expect(models[1].Created).To(Equal(time.Unix(1715367049, 0).UTC()))
		})
	})

	When("the OpenAI key is rejected", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
		})

		JustBeforeEach(func() {
			client, newErr := NewOpenAI("sk-bad", "", server.URL(), 0)
			Expect(newErr).NotTo(HaveOccurred())
			models, err = client.ListModels(context.Background())
		})

		It("returns an authentication error", func() {
			Expect(err).To(MatchError(ErrAuth))
			Expect(models).To(BeNil())
		})
	})

	When("listing Anthropic models", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/v1/models"),
				ghttp.VerifyHeaderKV("x-api-key", "test-key"),
				ghttp.VerifyHeaderKV("anthropic-version", anthropicVersion),
				ghttp.RespondWith(http.StatusOK, `{"data":[
					{"type":"model","id":"claude-3-5-sonnet-20241022","display_name":"Claude 3.5 Sonnet","created_at":"2024-10-22T00:00:00Z"}
				],"has_more":false}`),
			))
		})

		JustBeforeEach(func() {
			client, newErr := NewAnthropic("test-key", "", server.URL(), 0)
			Expect(newErr).NotTo(HaveOccurred())
			models, err = client.ListModels(context.Background())
		})

		It("returns the models", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(models).To(Equal([]Model{{
				ID:          "claude-3-5-sonnet-20241022",
				DisplayName: "Claude 3.5 Sonnet",
				Created:     time.Date(2024, 10, 22, 0, 0, 0, 0, time.UTC),
			}}))
		})
	})

	When("listing Ollama models", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/api/tags"),
				ghttp.RespondWith(http.StatusOK, `{"models":[{"name":"llava:latest"},{"name":"gemma2:2b"}]}`),
			))
		})

		JustBeforeEach(func() {
			client, newErr := NewOllama(server.URL(), "", 0)
			Expect(newErr).NotTo(HaveOccurred())
			models, err = client.ListModels(context.Background())
		})

		It("returns the local models sorted by name", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(models).To(HaveLen(2))
			Expect(models[0].ID).To(Equal("gemma2:2b"))
			Expect(models[1].ID).To(Equal("llava:latest"))
		})
	})

	It("is offered by every provider", func() {
		var _ ModelLister = (*OpenAI)(nil)
		var _ ModelLister = (*Anthropic)(nil)
		var _ ModelLister = (*Ollama)(nil)
		var _ ModelLister = (*Gemini)(nil)
	})
})
