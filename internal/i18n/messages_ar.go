package i18n

// loadArabicMessages loads the Arabic catalog.
func loadArabicMessages() {
	messages[LangAR] = map[string]string{
		// Common
		"app.name":        "askdw",
		"app.description": "تحدث مع مستودع بياناتك",
		"app.version":     "askdw v%s",

		// Status banners
		"chat.not_connected": "لا يوجد اتصال بقاعدة البيانات بعد. افتح إعدادات الاتصال ثم اتصل أولاً.",

		// Connect form
		"connect.title":    "الاتصال بقاعدة البيانات",
		"connect.host":     "المضيف",
		"connect.port":     "المنفذ",
		"connect.user":     "المستخدم",
		"connect.password": "كلمة المرور",
		"connect.database": "قاعدة البيانات",
		"connect.hint":     "enter: اتصال • tab: الحقل التالي • esc: خروج",
		"connect.working":  "جارٍ الاتصال بقاعدة البيانات...",
		"connect.success":  "تم الاتصال بقاعدة البيانات!",
		"connect.failure":  "فشل الاتصال: %v",

		// Chat view
		"chat.placeholder": "اكتب رسالة...",
		"chat.thinking":    "جارٍ التفكير...",
	}
}
