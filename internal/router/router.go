package router

import (
	"xamu/internal/handlers"
	"xamu/internal/middleware"
	"xamu/internal/models"
	"xamu/internal/services"
	"xamu/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupRouter 设置路由
func SetupRouter(importService *services.ImportService) *gin.Engine {
	router := gin.New()

	registerValidators()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS())

	// 租户解析全局生效，免解析路径在中间件内部短路
	tenantMW := middleware.NewTenantMiddleware()
	router.Use(tenantMW.Resolve())

	registerRoutes(router, importService)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine, importService *services.ImportService) {

	auth := middleware.NewAuthMiddleware()
	tenantService := services.NewTenantService()

	// 全局落地页（免租户解析）
	router.GET("/", landingPage)
	router.GET("/about", aboutPage)

	// 健康检查
	router.GET("/health", healthCheck)

	// ========== 认证（免租户解析） ==========
	authHandler := handlers.NewAuthHandler()
	authGroup := router.Group("/api/v1/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.GET("/me", auth.RequireLogin(), authHandler.Profile)
		authGroup.PUT("/password", auth.RequireLogin(), authHandler.ChangePassword)
	}

	// ========== 邀请接受（免租户解析，未登录可访问） ==========
	invitationHandler := handlers.NewInvitationHandler()
	invitations := router.Group("/api/v1/invitations")
	{
		invitations.GET("/:token", invitationHandler.GetByToken)
		invitations.POST("/:token/accept", invitationHandler.Accept)
	}

	// ========== 管理面（平台管理员专用，免租户解析） ==========
	tenantHandler := handlers.NewTenantHandler(tenantService)
	admin := router.Group("/api/v1/admin", auth.RequireLogin(), auth.RequirePlatformAdmin())
	{
		admin.POST("/tenants", tenantHandler.Create)
		admin.GET("/tenants", tenantHandler.GetAll)
		admin.GET("/tenants/stats", tenantHandler.GetStats)
		admin.GET("/tenants/:id", tenantHandler.GetByID)
		admin.PUT("/tenants/:id", tenantHandler.Update)
		admin.DELETE("/tenants/:id", tenantHandler.Delete)
		admin.POST("/tenants/:id/activate", tenantHandler.Activate)
		admin.POST("/tenants/:id/deactivate", tenantHandler.Deactivate)

		// 校长邀请
		admin.POST("/tenants/:id/invitation", tenantHandler.CreateInvitation)
		admin.GET("/tenants/:id/invitation", tenantHandler.GetInvitation)
	}

	// ========== 导入进度（免租户解析，学校从token恢复） ==========
	wsHandler := handlers.NewWebSocketHandler(tenantService, importService)
	router.GET("/ws/imports/:id", wsHandler.ImportProgress)

	// ========== 租户数据面 /:tenant_code/api/... ==========
	// 租户中间件已按路径解析并绑定学校，这里再挂守卫兜底
	academicHandler := handlers.NewAcademicHandler()
	studentHandler := handlers.NewStudentHandler()
	attendanceHandler := handlers.NewAttendanceHandler()
	userHandler := handlers.NewUserHandler()
	importHandler := handlers.NewImportHandler(importService)

	tenantAPI := router.Group("/:tenant_code/api", auth.RequireLogin(), middleware.RequireTenant())
	{
		// 科目
		tenantAPI.POST("/subjects", academicHandler.CreateSubject)
		tenantAPI.GET("/subjects", academicHandler.ListSubjects)
		tenantAPI.GET("/subjects/:id", academicHandler.GetSubject)
		tenantAPI.PUT("/subjects/:id", academicHandler.UpdateSubject)
		tenantAPI.DELETE("/subjects/:id", academicHandler.DeleteSubject)

		// 班级
		tenantAPI.POST("/classes", academicHandler.CreateClass)
		tenantAPI.GET("/classes", academicHandler.ListClasses)
		tenantAPI.GET("/classes/:id", academicHandler.GetClass)
		tenantAPI.PUT("/classes/:id", academicHandler.UpdateClass)
		tenantAPI.DELETE("/classes/:id", academicHandler.DeleteClass)

		// 学生与家庭关系
		tenantAPI.POST("/students", studentHandler.Create)
		tenantAPI.GET("/students", studentHandler.List)
		tenantAPI.GET("/students/:id", studentHandler.Get)
		tenantAPI.PUT("/students/:id", studentHandler.Update)
		tenantAPI.DELETE("/students/:id", studentHandler.Delete)
		tenantAPI.POST("/students/:id/family", studentHandler.CreateFamilyRelation)
		tenantAPI.GET("/students/:id/family", studentHandler.ListFamily)
		tenantAPI.DELETE("/students/:id/family/:relation_id", studentHandler.DeleteFamilyRelation)
		tenantAPI.GET("/students/:id/absence-stats", attendanceHandler.GetStudentAbsenceStats)

		// 排课
		tenantAPI.POST("/courses", attendanceHandler.CreateCourse)
		tenantAPI.GET("/courses", attendanceHandler.ListCourses)
		tenantAPI.GET("/courses/:id", attendanceHandler.GetCourse)
		tenantAPI.POST("/courses/:id/cancel", attendanceHandler.CancelCourse)
		tenantAPI.DELETE("/courses/:id", attendanceHandler.DeleteCourse)

		// 考勤
		tenantAPI.POST("/absences", attendanceHandler.RecordAbsence)
		tenantAPI.GET("/absences", attendanceHandler.ListAbsences)
		tenantAPI.POST("/absences/:id/justify", attendanceHandler.JustifyAbsence)
		tenantAPI.DELETE("/absences/:id", attendanceHandler.DeleteAbsence)

		// 校内人员（校长专用）
		principal := tenantAPI.Group("", auth.RequireRole("principal"))
		{
			principal.POST("/users", userHandler.Create)
			principal.GET("/users", userHandler.List)
			principal.GET("/users/:id", userHandler.Get)
			principal.PUT("/users/:id", userHandler.Update)
			principal.DELETE("/users/:id", userHandler.Delete)

			// CSV导入
			principal.POST("/imports", importHandler.Upload)
			principal.GET("/imports", importHandler.ListSessions)
			principal.GET("/imports/:id", importHandler.GetSession)
			principal.GET("/imports/:id/accounts", importHandler.ListGeneratedAccounts)
		}
	}
}

// registerValidators 注册自定义绑定校验
func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("tenantcode", func(fl validator.FieldLevel) bool {
			return models.IsValidTenantCode(fl.Field().String())
		})
	}
}

// healthCheck 健康检查
func healthCheck(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

// landingPage 全局首页，访问学校需走 /<学校代码>/ 前缀
func landingPage(c *gin.Context) {
	response.Success(c, gin.H{
		"name":    "xamu",
		"message": "多学校管理平台",
	})
}

// aboutPage 全局about页
func aboutPage(c *gin.Context) {
	response.Success(c, gin.H{
		"name":        "xamu",
		"description": "面向学校的多租户管理系统，每所学校的数据相互隔离",
	})
}
