package main

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"meta-hand/config"
	"meta-hand/models"
	"meta-hand/providers"
	"meta-hand/providers/addgene"
	"meta-hand/providers/mgi"
	"meta-hand/providers/ncbigene"
	"meta-hand/schema"
	"meta-hand/services"
	"meta-hand/storage"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to metadata database", zap.Error(err))
	}
	logging.Info("Successfully connected to metadata database.")

	logging.Info("Running database auto-migration...")
	db.AutoMigrate(&models.Record{}, &models.RecordLink{}, &models.ConversationTurn{}, &models.Upload{})

	vocab, err := schema.Load(cfg.VocabularyFile)
	if err != nil {
		logging.Fatal("Failed to load vocabulary", zap.Error(err))
	}

	// Setup Registries
	enabledNames := strings.Split(cfg.EnabledRegistries, ",")
	var registries []providers.Registry
	for _, name := range enabledNames {
		switch strings.TrimSpace(name) {
		case models.RegistryAddgene:
			registries = append(registries, addgene.NewFetcher(cfg, logging))
		case models.RegistryNCBIGene:
			registries = append(registries, ncbigene.NewFetcher(cfg, logging))
		case models.RegistryMGI:
			registries = append(registries, mgi.NewFetcher(cfg, logging))
		default:
			logging.Warn("Unknown registry in config", zap.String("registry_name", name))
		}
	}
	logging.Info("Active registries loaded", zap.Strings("registries", enabledNames))

	// Setup Services
	s3Client, err := storage.NewS3Client(cfg)
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}
	store := services.NewRecordStore(db, logging)
	validator := services.NewValidator(vocab)
	registryService := services.NewRegistryService(cfg, logging, registries)
	captureService := services.NewCaptureService(store, validator, registryService, logging)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupRecordRoutes(router, store, logging)
	setupCaptureRoutes(router, captureService, logging)
	setupSessionRoutes(router, store, logging)
	setupUploadRoutes(router, store, s3Client, cfg, logging)

	// Setup Cron: nächtliche Re-Validierung nach Vokabular-Updates
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled revalidation sweep...")
		count, err := captureService.RevalidateAll()
		if err != nil {
			logging.Error("Revalidation sweep failed", zap.Error(err))
		} else {
			logging.Info("Revalidation sweep completed", zap.Int("records", count))
		}
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupRecordRoutes(router *gin.Engine, store *services.RecordStore, log *zap.Logger) {
	rg := router.Group("/records")

	// Direktes Anlegen ohne Capture-Pipeline (kein Validierungslauf)
	rg.POST("/", func(c *gin.Context) {
		var req struct {
			SessionID  string         `json:"session_id"`
			RecordType string         `json:"record_type" binding:"required"`
			Data       map[string]any `json:"data"`
			Name       string         `json:"name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'record_type' is required."})
			return
		}
		record, err := store.Create(req.SessionID, req.RecordType, req.Data, req.Name)
		if err != nil {
			if errors.Is(err, services.ErrInvalidType) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			log.Error("Failed to create record", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusCreated, record)
	})

	// Nur die gesendeten Felder werden gemergt, der Rest bleibt erhalten
	rg.PUT("/:id", func(c *gin.Context) {
		var req struct {
			Data map[string]any `json:"data"`
			Name string         `json:"name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		record, err := store.Update(c.Param("id"), req.Data, req.Name)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
				return
			}
			log.Error("Failed to update record", zap.String("id", c.Param("id")), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, record)
	})

	rg.GET("/:id", func(c *gin.Context) {
		record, err := store.Get(c.Param("id"))
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
				return
			}
			log.Error("DB error loading record", zap.String("id", c.Param("id")), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, record)
	})

	rg.GET("/:id/links", func(c *gin.Context) {
		linked, err := store.Linked(c.Param("id"))
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
				return
			}
			log.Error("DB error loading linked records", zap.String("id", c.Param("id")), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, linked)
	})

	// Body-gesteuerter Endpunkt für gefilterte Abfragen
	rg.POST("/query", func(c *gin.Context) {
		type RecordQuery struct {
			SessionID  string `json:"session_id"`
			RecordType string `json:"record_type"`
			Category   string `json:"category"`
			Status     string `json:"status"`
		}
		var req RecordQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		records, err := store.ListRecords(req.SessionID, req.RecordType, req.Category, req.Status)
		if err != nil {
			log.Error("Database query for records failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, records)
	})

	// Namenssuche über alle Sessions hinweg
	rg.POST("/find", func(c *gin.Context) {
		var req struct {
			Query      string `json:"query"`
			RecordType string `json:"record_type"`
			Category   string `json:"category"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		records, err := store.Find(req.Query, req.RecordType, req.Category)
		if err != nil {
			log.Error("Record search failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, records)
	})

	rg.POST("/:id/confirm", func(c *gin.Context) {
		record, err := store.Confirm(c.Param("id"))
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
				return
			}
			log.Error("Failed to confirm record", zap.String("id", c.Param("id")), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, record)
	})

	rg.POST("/link", func(c *gin.Context) {
		var req struct {
			A string `json:"a" binding:"required"`
			B string `json:"b" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'a' and 'b' are required."})
			return
		}
		if err := store.Link(req.A, req.B); err != nil {
			if errors.Is(err, services.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			log.Error("Failed to link records", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"linked": true})
	})

	rg.DELETE("/:id", func(c *gin.Context) {
		deleted, err := store.Delete(c.Param("id"))
		if err != nil {
			log.Error("Failed to delete record", zap.String("id", c.Param("id")), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": deleted})
	})
}

func setupCaptureRoutes(router *gin.Engine, captureService *services.CaptureService, log *zap.Logger) {
	rg := router.Group("/capture")

	// Einzelner Capture-Aufruf ohne Turn-Stream
	rg.POST("/", func(c *gin.Context) {
		var req services.CaptureRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		response, err := captureService.Capture(c.Request.Context(), req, nil)
		if err != nil {
			writeCaptureError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response)
	})

	// Mehrere Capture-Aufrufe eines Gesprächszugs; die Validierungs-Events
	// werden über den Turn-Kanal eingesammelt und mitgeliefert.
	rg.POST("/turn", func(c *gin.Context) {
		var req struct {
			SessionID   string                    `json:"session_id"`
			Invocations []services.CaptureRequest `json:"invocations" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'invocations' is required."})
			return
		}

		events := services.NewTurnEvents()
		defer events.Close()

		responses := make([]any, 0, len(req.Invocations))
		for _, invocation := range req.Invocations {
			if invocation.SessionID == "" {
				invocation.SessionID = req.SessionID
			}
			response, err := captureService.Capture(c.Request.Context(), invocation, events)
			if err != nil {
				responses = append(responses, gin.H{"error": err.Error(), "invocation_id": invocation.InvocationID})
				continue
			}
			responses = append(responses, response)
		}

		c.JSON(http.StatusOK, gin.H{
			"responses": responses,
			"events":    events.Drain(),
		})
	})
}

func writeCaptureError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Error("Capture failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "capture failed"})
	}
}

func setupSessionRoutes(router *gin.Engine, store *services.RecordStore, log *zap.Logger) {
	rg := router.Group("/sessions")

	rg.GET("/", func(c *gin.Context) {
		sessions, err := store.Sessions()
		if err != nil {
			log.Error("Failed to list sessions", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, sessions)
	})

	rg.GET("/:id/records", func(c *gin.Context) {
		records, err := store.ListBySession(c.Param("id"))
		if err != nil {
			log.Error("Failed to list session records", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, records)
	})

	rg.GET("/:id/history", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
		turns, err := store.History(c.Param("id"), limit)
		if err != nil {
			log.Error("Failed to load history", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, turns)
	})

	rg.POST("/:id/turns", func(c *gin.Context) {
		var req struct {
			Role        string   `json:"role" binding:"required"`
			Content     string   `json:"content" binding:"required"`
			Attachments []string `json:"attachments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'role' and 'content' are required."})
			return
		}
		if err := store.SaveTurn(c.Param("id"), req.Role, req.Content, req.Attachments); err != nil {
			log.Error("Failed to save turn", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"saved": true})
	})

	rg.DELETE("/:id", func(c *gin.Context) {
		deleted, err := store.DeleteSession(c.Param("id"))
		if err != nil {
			log.Error("Failed to delete session", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": deleted})
	})
}

func setupUploadRoutes(router *gin.Engine, store *services.RecordStore, s3Client *awss3.Client, cfg *config.Config, log *zap.Logger) {
	rg := router.Group("/uploads")

	rg.POST("/", func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart 'file' field is required"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
			return
		}

		upload := &models.Upload{
			ID:               uuid.NewString(),
			SessionID:        c.PostForm("session_id"),
			OriginalFilename: fileHeader.Filename,
			ContentType:      fileHeader.Header.Get("Content-Type"),
			SizeBytes:        int64(len(data)),
		}

		link, err := storage.UploadAttachment(c.Request.Context(), s3Client, cfg,
			upload.ID, upload.OriginalFilename, upload.ContentType, data)
		if err != nil {
			log.Error("S3 upload failed", zap.String("filename", upload.OriginalFilename), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
			return
		}
		upload.S3Link = link

		if err := store.SaveUpload(upload); err != nil {
			log.Error("Failed to save upload metadata", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusCreated, upload)
	})

	rg.GET("/:id", func(c *gin.Context) {
		upload, err := store.GetUpload(c.Param("id"))
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
				return
			}
			log.Error("DB error loading upload", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, upload)
	})
}
