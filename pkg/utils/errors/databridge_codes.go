package errors

import "google.golang.org/grpc/codes"

// DataBridge service codes (AA = 21).
//
// The document/retrieval pipelines map their failure modes onto the
// shared category scheme: permission checks onto 03, missing documents
// and caches onto 04, pipeline integrity violations onto 05, adapter
// failures onto 07/08.
var (
	// Request errors (category 01)
	ErrDocInvalidRequest = Register(New(MakeCode(ServiceDataBridge, CategoryRequest, 1), 400, codes.InvalidArgument, "Invalid request parameters", "请求参数无效"))
	ErrDocEmptyContent   = Register(New(MakeCode(ServiceDataBridge, CategoryRequest, 2), 400, codes.InvalidArgument, "Document content is empty", "文档内容为空"))
	ErrRuleUnknownType   = Register(New(MakeCode(ServiceDataBridge, CategoryRequest, 3), 400, codes.InvalidArgument, "Unknown rule type", "未知规则类型"))
	ErrCacheNoDocuments  = Register(New(MakeCode(ServiceDataBridge, CategoryRequest, 4), 400, codes.InvalidArgument, "No documents match the cache filter", "没有文档匹配缓存过滤条件"))

	// Permission errors (category 03)
	ErrDocNoReadAccess  = Register(New(MakeCode(ServiceDataBridge, CategoryPermission, 1), 403, codes.PermissionDenied, "No read access to document", "无文档读取权限"))
	ErrDocNoWriteAccess = Register(New(MakeCode(ServiceDataBridge, CategoryPermission, 2), 403, codes.PermissionDenied, "No write access", "无写入权限"))
	ErrDocNoAdminAccess = Register(New(MakeCode(ServiceDataBridge, CategoryPermission, 3), 403, codes.PermissionDenied, "No admin access to document", "无文档管理权限"))

	// Resource errors (category 04)
	ErrDocNotFound        = Register(New(MakeCode(ServiceDataBridge, CategoryResource, 1), 404, codes.NotFound, "Document not found", "文档不存在"))
	ErrDocChunksNotFound  = Register(New(MakeCode(ServiceDataBridge, CategoryResource, 2), 404, codes.NotFound, "No chunks found for document", "文档没有关联分块"))
	ErrCacheNotFound      = Register(New(MakeCode(ServiceDataBridge, CategoryResource, 3), 404, codes.NotFound, "Cache not found", "缓存不存在"))
	ErrCacheNotLoaded     = Register(New(MakeCode(ServiceDataBridge, CategoryResource, 4), 404, codes.FailedPrecondition, "Cache not loaded", "缓存未加载"))
	ErrCacheStateNotFound = Register(New(MakeCode(ServiceDataBridge, CategoryResource, 5), 404, codes.NotFound, "Cache state blob not found", "缓存状态不存在"))

	// Integrity errors (category 05)
	ErrChunkDeleteMismatch = Register(New(MakeCode(ServiceDataBridge, CategoryConflict, 1), 409, codes.DataLoss, "Chunk delete count mismatch", "分块删除数量不一致"))
	ErrEmbeddingMismatch   = Register(New(MakeCode(ServiceDataBridge, CategoryConflict, 2), 409, codes.Internal, "Embedding count does not match chunk count", "向量数量与分块数量不一致"))

	// Internal/pipeline errors (category 07)
	ErrEmbeddingFailed  = Register(New(MakeCode(ServiceDataBridge, CategoryInternal, 1), 500, codes.Internal, "Embedding generation failed", "向量生成失败"))
	ErrCompletionFailed = Register(New(MakeCode(ServiceDataBridge, CategoryInternal, 2), 500, codes.Internal, "Completion generation failed", "补全生成失败"))
	ErrRerankFailed     = Register(New(MakeCode(ServiceDataBridge, CategoryInternal, 3), 500, codes.Internal, "Result reranking failed", "结果重排失败"))
	ErrRuleApplyFailed  = Register(New(MakeCode(ServiceDataBridge, CategoryInternal, 4), 500, codes.Internal, "Rule application failed", "规则应用失败"))
	ErrCacheStateBroken = Register(New(MakeCode(ServiceDataBridge, CategoryInternal, 5), 500, codes.Internal, "Cache state is corrupted", "缓存状态已损坏"))
	ErrBlobStorage      = Register(New(MakeCode(ServiceDataBridge, CategoryInternal, 6), 500, codes.Internal, "Blob storage operation failed", "对象存储操作失败"))

	// Store errors (category 08)
	ErrMetadataStore = Register(New(MakeCode(ServiceDataBridge, CategoryDatabase, 1), 500, codes.Internal, "Metadata store operation failed", "元数据存储操作失败"))
	ErrVectorStore   = Register(New(MakeCode(ServiceDataBridge, CategoryDatabase, 2), 500, codes.Internal, "Vector store operation failed", "向量存储操作失败"))
)
