package bill

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Server", func() {
	var (
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	BeforeEach(func() {
		service = NewService(newMockDB(), newMockScanner(), newMockStorage())
		auth = BasicAuth{}
		server = NewServerWithMux(service, auth, http.NewServeMux())
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleIndex", func() {
		When("request method is GET", func() {
			It("should return status OK", func() {
				resp, err := http.Get(ghttpServer.URL() + "/")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				resp.Body.Close()
			})

			It("should return HTML containing Splitmaat", func() {
				resp, err := http.Get(ghttpServer.URL() + "/")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(ContainSubstring("Splitmaat"))
			})
		})

		When("request method is not GET", func() {
			It("should return status Method Not Allowed", func() {
				req, err := http.NewRequest("POST", ghttpServer.URL()+"/", nil)
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
				resp.Body.Close()
			})
		})
	})

	Describe("handleListBills", func() {
		When("bills exist", func() {
			BeforeEach(func() {
				db := newMockDB()
				db.bills["id1"] = &Bill{ID: "id1"}
				db.bills["id2"] = &Bill{ID: "id2"}
				service = NewService(db, newMockScanner(), newMockStorage())
				server = NewServerWithMux(service, auth, http.NewServeMux())
				setupServer()
			})

			It("should return status OK", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				resp.Body.Close()
			})

			It("should return all bills", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				var bills []*Bill
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &bills)).NotTo(HaveOccurred())
				Expect(bills).To(HaveLen(2))
			})

			It("should set Content-Type to application/json", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
			})
		})

		When("service returns an error", func() {
			BeforeEach(func() {
				db := newMockDB()
				db.listErr = errors.New("service error")
				service = NewService(db, newMockScanner(), newMockStorage())
				server = NewServerWithMux(service, auth, http.NewServeMux())
				setupServer()
			})

			It("should return status Internal Server Error", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				resp.Body.Close()
			})
		})
	})

	Describe("handleUploadBill", func() {
		When("upload succeeds", func() {
			It("should return status Created", func() {
				var b bytes.Buffer
				writer := multipart.NewWriter(&b)
				part, _ := writer.CreateFormFile("file", "test.jpg")
				part.Write([]byte("fake image data"))
				writer.Close()

				resp, err := http.Post(ghttpServer.URL()+"/api/bills", writer.FormDataContentType(), &b)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				resp.Body.Close()
			})

			It("should return a bill with an ID and items", func() {
				var b bytes.Buffer
				writer := multipart.NewWriter(&b)
				part, _ := writer.CreateFormFile("file", "test.jpg")
				part.Write([]byte("fake image data"))
				writer.Close()

				resp, err := http.Post(ghttpServer.URL()+"/api/bills", writer.FormDataContentType(), &b)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				var bill Bill
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &bill)).NotTo(HaveOccurred())
				Expect(bill.ID).NotTo(BeEmpty())
				Expect(bill.Items).To(HaveLen(2))
			})
		})

		When("no file is provided", func() {
			It("should return status Bad Request", func() {
				var b bytes.Buffer
				writer := multipart.NewWriter(&b)
				writer.Close()

				resp, err := http.Post(ghttpServer.URL()+"/api/bills", writer.FormDataContentType(), &b)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})

		When("invalid multipart form", func() {
			It("should return status Bad Request", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/bills", "multipart/form-data", bytes.NewBufferString("invalid"))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})

		When("scanning fails", func() {
			BeforeEach(func() {
				scanner := newMockScanner()
				scanner.scanErr = errors.New("scan error")
				service = NewService(newMockDB(), scanner, newMockStorage())
				server = NewServerWithMux(service, auth, http.NewServeMux())
				setupServer()
			})

			It("should return error in JSON", func() {
				var b bytes.Buffer
				writer := multipart.NewWriter(&b)
				part, _ := writer.CreateFormFile("file", "test.jpg")
				part.Write([]byte("fake image data"))
				writer.Close()

				resp, err := http.Post(ghttpServer.URL()+"/api/bills", writer.FormDataContentType(), &b)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				var response map[string]string
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &response)).NotTo(HaveOccurred())
				Expect(response["error"]).To(ContainSubstring("scan error"))
			})
		})
	})

	Describe("handleGetBill", func() {
		When("bill exists", func() {
			BeforeEach(func() {
				db := newMockDB()
				db.bills["test-id"] = storedBill("test-id")
				service = NewService(db, newMockScanner(), newMockStorage())
				server = NewServerWithMux(service, auth, http.NewServeMux())
				setupServer()
			})

			It("should return the correct bill", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills/test-id")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var got Bill
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &got)).NotTo(HaveOccurred())
				Expect(got.ID).To(Equal("test-id"))
				Expect(got.Items).To(HaveLen(3))
			})
		})

		When("bill does not exist", func() {
			It("should return status Not Found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills/nonexistent")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("handleGetBillImage", func() {
		When("bill and image exist", func() {
			BeforeEach(func() {
				db := newMockDB()
				storage := newMockStorage()
				db.bills["test-id"] = &Bill{
					ID:          "test-id",
					Filename:    "test-file.jpg",
					ContentType: "image/jpeg",
				}
				storage.files["test-file.jpg"] = []byte("file content")
				service = NewService(db, newMockScanner(), storage)
				server = NewServerWithMux(service, auth, http.NewServeMux())
				setupServer()
			})

			It("should return the image with its content type", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills/test-id/image")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("image/jpeg"))
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(Equal("file content"))
			})
		})

		When("bill does not exist", func() {
			It("should return status Not Found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills/nonexistent/image")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("handleDeleteBill", func() {
		When("deletion succeeds", func() {
			BeforeEach(func() {
				db := newMockDB()
				storage := newMockStorage()
				db.bills["test-id"] = &Bill{ID: "test-id", Filename: "test-file.jpg"}
				storage.files["test-file.jpg"] = []byte("data")
				service = NewService(db, newMockScanner(), storage)
				server = NewServerWithMux(service, auth, http.NewServeMux())
				setupServer()
			})

			It("should return status No Content", func() {
				req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/bills/test-id", nil)
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
				resp.Body.Close()
			})
		})

		When("bill does not exist", func() {
			It("should return status Internal Server Error", func() {
				req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/bills/nonexistent", nil)
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				resp.Body.Close()
			})
		})
	})

	Describe("handleUpdateItem", func() {
		BeforeEach(func() {
			db := newMockDB()
			db.bills["test-id"] = storedBill("test-id")
			service = NewService(db, newMockScanner(), newMockStorage())
			server = NewServerWithMux(service, auth, http.NewServeMux())
			setupServer()
		})

		When("the correction is valid", func() {
			It("should return the updated bill", func() {
				body, _ := json.Marshal(map[string]any{"description": "Veggie Burger", "rate": 11.00})
				req, err := http.NewRequest("PUT", ghttpServer.URL()+"/api/bills/test-id/items/0", bytes.NewBuffer(body))
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Content-Type", "application/json")
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var got Bill
				respBody, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(respBody, &got)).NotTo(HaveOccurred())
				Expect(got.Items[0].Description).To(Equal("Veggie Burger"))
				Expect(got.Items[0].Rate).To(Equal(11.00))
			})
		})

		When("the index is not a number", func() {
			It("should return status Bad Request", func() {
				body, _ := json.Marshal(map[string]any{"description": "X", "rate": 1.00})
				req, err := http.NewRequest("PUT", ghttpServer.URL()+"/api/bills/test-id/items/abc", bytes.NewBuffer(body))
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})

		When("the rate is negative", func() {
			It("should return status Bad Request", func() {
				body, _ := json.Marshal(map[string]any{"description": "X", "rate": -1.00})
				req, err := http.NewRequest("PUT", ghttpServer.URL()+"/api/bills/test-id/items/0", bytes.NewBuffer(body))
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})
	})

	Describe("handleShare", func() {
		BeforeEach(func() {
			db := newMockDB()
			db.bills["test-id"] = storedBill("test-id")
			service = NewService(db, newMockScanner(), newMockStorage())
			server = NewServerWithMux(service, auth, http.NewServeMux())
			setupServer()
		})

		When("the selection is valid", func() {
			It("should return the share with message", func() {
				body, _ := json.Marshal(map[string]any{
					"selection":   map[string]int{"0": 1},
					"tip_percent": 10,
				})
				resp, err := http.Post(ghttpServer.URL()+"/api/bills/test-id/share", "application/json", bytes.NewBuffer(body))
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var result ShareResult
				respBody, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(respBody, &result)).NotTo(HaveOccurred())
				Expect(result.Subtotal).To(Equal(10.00))
				Expect(result.Tip).To(Equal(1.00))
				Expect(result.Total).To(Equal(11.00))
				Expect(result.Message).To(ContainSubstring("1x Burger - $10.00"))
			})
		})

		When("the selection claims more than exists", func() {
			It("should return status Bad Request with a JSON error", func() {
				body, _ := json.Marshal(map[string]any{
					"selection":   map[string]int{"0": 5},
					"tip_percent": 10,
				})
				resp, err := http.Post(ghttpServer.URL()+"/api/bills/test-id/share", "application/json", bytes.NewBuffer(body))
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				var response map[string]string
				respBody, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(respBody, &response)).NotTo(HaveOccurred())
				Expect(response["error"]).NotTo(BeEmpty())
			})
		})

		When("the tip is negative", func() {
			It("should return status Bad Request", func() {
				body, _ := json.Marshal(map[string]any{
					"selection":   map[string]int{"0": 1},
					"tip_percent": -5,
				})
				resp, err := http.Post(ghttpServer.URL()+"/api/bills/test-id/share", "application/json", bytes.NewBuffer(body))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})

		When("invalid JSON body", func() {
			It("should return status Bad Request", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/bills/test-id/share", "application/json", bytes.NewBufferString("invalid json"))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})

		When("the bill does not exist", func() {
			It("should return status Not Found", func() {
				body, _ := json.Marshal(map[string]any{
					"selection":   map[string]int{"0": 1},
					"tip_percent": 10,
				})
				resp, err := http.Post(ghttpServer.URL()+"/api/bills/nonexistent/share", "application/json", bytes.NewBuffer(body))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("handleSplit", func() {
		BeforeEach(func() {
			db := newMockDB()
			db.bills["test-id"] = storedBill("test-id")
			service = NewService(db, newMockScanner(), newMockStorage())
			server = NewServerWithMux(service, auth, http.NewServeMux())
			setupServer()
		})

		When("the selections are valid", func() {
			It("should return every party's share", func() {
				body, _ := json.Marshal(map[string]any{
					"selections": map[string]map[string]int{
						"ana": {"0": 1},
						"ben": {"1": 1, "2": 2},
					},
				})
				resp, err := http.Post(ghttpServer.URL()+"/api/bills/test-id/split", "application/json", bytes.NewBuffer(body))
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var result SplitResult
				respBody, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(respBody, &result)).NotTo(HaveOccurred())
				Expect(result.Adjustment).To(Equal(5.00))
				Expect(result.Parties).To(HaveLen(2))
				Expect(result.Parties["ana"].Total).To(Equal(12.50))
				Expect(result.Parties["ben"].Total).To(Equal(12.50))
			})
		})

		When("no selections are provided", func() {
			It("should return status Bad Request", func() {
				body, _ := json.Marshal(map[string]any{"selections": map[string]map[string]int{}})
				resp, err := http.Post(ghttpServer.URL()+"/api/bills/test-id/split", "application/json", bytes.NewBuffer(body))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})

		When("the parties together claim more than exists", func() {
			It("should return status Bad Request", func() {
				body, _ := json.Marshal(map[string]any{
					"selections": map[string]map[string]int{
						"ana": {"0": 1},
						"ben": {"0": 1},
					},
				})
				resp, err := http.Post(ghttpServer.URL()+"/api/bills/test-id/split", "application/json", bytes.NewBuffer(body))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})
	})

	Describe("authenticate", func() {
		var result bool

		When("no auth is configured", func() {
			It("should return true", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/", nil)
				Expect(err).NotTo(HaveOccurred())
				result = server.authenticate(req)
				Expect(result).To(BeTrue())
			})
		})

		When("valid credentials are provided", func() {
			BeforeEach(func() {
				auth = BasicAuth{Username: "user", Password: "pass"}
				server = NewServerWithMux(service, auth, http.NewServeMux())
				setupServer()
			})

			It("should return true", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/", nil)
				Expect(err).NotTo(HaveOccurred())
				credentials := base64.StdEncoding.EncodeToString([]byte("user:pass"))
				req.Header.Set("Authorization", "Basic "+credentials)
				result = server.authenticate(req)
				Expect(result).To(BeTrue())
			})
		})

		When("invalid credentials are provided", func() {
			BeforeEach(func() {
				auth = BasicAuth{Username: "user", Password: "pass"}
				server = NewServerWithMux(service, auth, http.NewServeMux())
				setupServer()
			})

			It("should return false", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/", nil)
				Expect(err).NotTo(HaveOccurred())
				credentials := base64.StdEncoding.EncodeToString([]byte("user:wrong"))
				req.Header.Set("Authorization", "Basic "+credentials)
				result = server.authenticate(req)
				Expect(result).To(BeFalse())
			})
		})
	})

	Describe("requireAuth", func() {
		When("request is unauthorized", func() {
			BeforeEach(func() {
				auth = BasicAuth{Username: "user", Password: "pass"}
				server = NewServerWithMux(service, auth, http.NewServeMux())
				setupServer()
			})

			It("should return status Unauthorized", func() {
				resp, err := http.Get(ghttpServer.URL() + "/")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				resp.Body.Close()
			})

			It("should set WWW-Authenticate header", func() {
				resp, err := http.Get(ghttpServer.URL() + "/")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.Header.Get("WWW-Authenticate")).NotTo(BeEmpty())
			})
		})
	})

	Describe("handleStaticCSS", func() {
		When("request is GET", func() {
			It("should return CSS content", func() {
				resp, err := http.Get(ghttpServer.URL() + "/static/app.css")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("text/css"))
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(len(body)).To(BeNumerically(">", 0))
			})
		})
	})

	Describe("handleStaticJS", func() {
		When("request is GET", func() {
			It("should return JavaScript content", func() {
				resp, err := http.Get(ghttpServer.URL() + "/static/app.js")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/javascript"))
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(len(body)).To(BeNumerically(">", 0))
			})
		})
	})
})
