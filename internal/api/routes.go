package api

import (
	"net/http"

	"skillsphere/course-studio/internal/domain"
	"skillsphere/course-studio/internal/logger"
	"skillsphere/course-studio/internal/service"

	"github.com/gin-gonic/gin"
)

// RouteConfig carries the settings the routes need besides the services.
type RouteConfig struct {
	JWTSecret      string
	MaxUploadBytes int64
}

func SetupRoutes(
	router *gin.Engine,
	cfg RouteConfig,
	draftService service.DraftService,
	log *logger.Logger,
) {
	draftHandler := NewDraftHandler(draftService, cfg.MaxUploadBytes, log)
	authMiddleware := AuthMiddleware(cfg.JWTSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userID, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userID, "role": role, "canAuthor": role.CanAuthor()})
		})

		// Only instructors and companies build courses
		drafts := protected.Group("/drafts")
		drafts.Use(RoleMiddleware(domain.RoleInstructor, domain.RoleCompany))
		{
			drafts.POST("", draftHandler.CreateDraft)
			drafts.GET("", draftHandler.ListDrafts)
			drafts.POST("/import/:slug", draftHandler.ImportCourse)

			drafts.GET("/:draftId", draftHandler.GetDraft)
			drafts.PATCH("/:draftId", draftHandler.UpdateCourse)
			drafts.DELETE("/:draftId", draftHandler.DeleteDraft)

			// Curriculum tree
			drafts.POST("/:draftId/modules", draftHandler.AddModule)
			drafts.POST("/:draftId/modules/:m/weeks", draftHandler.AddWeek)
			drafts.POST("/:draftId/modules/:m/weeks/:w/lessons", draftHandler.AddLesson)
			drafts.PATCH("/:draftId/nodes", draftHandler.UpdateNodeField)
			drafts.DELETE("/:draftId/nodes", draftHandler.RemoveNode)

			// Pending files
			drafts.PUT("/:draftId/uploads", draftHandler.AttachFile)
			drafts.DELETE("/:draftId/uploads", draftHandler.ClearFile)
			drafts.GET("/:draftId/uploads/preview", draftHandler.PreviewFile)
			drafts.PUT("/:draftId/thumbnail", draftHandler.AttachThumbnail)

			drafts.POST("/:draftId/deploy", draftHandler.Deploy)
		}
	}
}
