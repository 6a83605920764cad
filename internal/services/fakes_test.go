package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/pulse/backend/internal/models"
	"github.com/anonto42/pulse/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory stores with the same atomicity as the Mongo implementations:
// each method is one critical section, and the ledgers reject duplicate pairs.

type memUsers struct {
	mu    sync.Mutex
	byID  map[primitive.ObjectID]*models.User
	order []primitive.ObjectID
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[primitive.ObjectID]*models.User{}}
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Followers = append([]primitive.ObjectID{}, u.Followers...)
	c.Following = append([]primitive.ObjectID{}, u.Following...)
	return &c
}

func (r *memUsers) CreateUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Username == user.Username || u.Email == user.Email {
			return repositories.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	user.CreatedAt = time.Now()
	if user.Followers == nil {
		user.Followers = []primitive.ObjectID{}
	}
	if user.Following == nil {
		user.Following = []primitive.ObjectID{}
	}
	r.byID[user.ID] = cloneUser(user)
	r.order = append(r.order, user.ID)
	return nil
}

func (r *memUsers) find(match func(*models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		if u, ok := r.byID[id]; ok && match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *memUsers) GetUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *memUsers) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Username == username })
}

func (r *memUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r *memUsers) GetUserByFirebaseUID(_ context.Context, uid string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.FirebaseUID != "" && u.FirebaseUID == uid })
}

func (r *memUsers) GetUsersByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := []models.User{}
	for _, id := range ids {
		if u, ok := r.byID[id]; ok {
			users = append(users, *cloneUser(u))
		}
	}
	return users, nil
}

func (r *memUsers) SearchUsers(_ context.Context, query string, limit int64) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := []models.User{}
	for _, id := range r.order {
		u := r.byID[id]
		if strings.Contains(strings.ToLower(u.Username), strings.ToLower(query)) && int64(len(users)) < limit {
			users = append(users, *cloneUser(u))
		}
	}
	return users, nil
}

func (r *memUsers) UpdateProfile(_ context.Context, id primitive.ObjectID, bio, avatarURL *string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if bio != nil {
		u.Bio = *bio
	}
	if avatarURL != nil {
		u.AvatarURL = *avatarURL
	}
	return cloneUser(u), nil
}

func (r *memUsers) LinkFirebaseUID(_ context.Context, id primitive.ObjectID, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u.FirebaseUID = uid
	return nil
}

func (r *memUsers) AddFollowRelation(_ context.Context, followerID, followingID primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	follower, ok := r.byID[followerID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	follower.Following = addID(follower.Following, followingID)
	target, ok := r.byID[followingID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	target.Followers = addID(target.Followers, followerID)
	return cloneUser(target), nil
}

func (r *memUsers) RemoveFollowRelation(_ context.Context, followerID, followingID primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	follower, ok := r.byID[followerID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	follower.Following = removeID(follower.Following, followingID)
	target, ok := r.byID[followingID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	target.Followers = removeID(target.Followers, followerID)
	return cloneUser(target), nil
}

func (r *memUsers) SetRelations(_ context.Context, id primitive.ObjectID, followers, following []primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u.Followers = append([]primitive.ObjectID{}, followers...)
	u.Following = append([]primitive.ObjectID{}, following...)
	return nil
}

func (r *memUsers) ForEachUserID(ctx context.Context, fn func(primitive.ObjectID) error) error {
	r.mu.Lock()
	ids := append([]primitive.ObjectID{}, r.order...)
	r.mu.Unlock()
	for _, id := range ids {
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}

// setFollowers corrupts the cached set directly
func (r *memUsers) setFollowers(id primitive.ObjectID, ids []primitive.ObjectID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[id].Followers = ids
}

type memPosts struct {
	mu    sync.Mutex
	byID  map[primitive.ObjectID]*models.Post
	order []primitive.ObjectID

	addLikeErr error
}

func newMemPosts() *memPosts {
	return &memPosts{byID: map[primitive.ObjectID]*models.Post{}}
}

func clonePost(p *models.Post) *models.Post {
	c := *p
	c.LikedBy = append([]primitive.ObjectID{}, p.LikedBy...)
	return &c
}

func (r *memPosts) CreatePost(_ context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	post.ID = primitive.NewObjectID()
	post.CreatedAt = time.Now().Add(time.Duration(len(r.order)) * time.Millisecond)
	post.LikesCount = 0
	post.CommentsCount = 0
	post.LikedBy = []primitive.ObjectID{}
	r.byID[post.ID] = clonePost(post)
	r.order = append(r.order, post.ID)
	return nil
}

func (r *memPosts) GetPostByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return clonePost(p), nil
}

func (r *memPosts) filter(match func(*models.Post) bool, skip, limit int64) []models.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	posts := []models.Post{}
	for i := len(r.order) - 1; i >= 0; i-- {
		if p, ok := r.byID[r.order[i]]; ok && match(p) {
			posts = append(posts, *clonePost(p))
		}
	}
	if skip >= int64(len(posts)) {
		return []models.Post{}
	}
	posts = posts[skip:]
	if limit > 0 && int64(len(posts)) > limit {
		posts = posts[:limit]
	}
	return posts
}

func (r *memPosts) GetPostsByAuthor(_ context.Context, authorID primitive.ObjectID, skip, limit int64) ([]models.Post, error) {
	return r.filter(func(p *models.Post) bool { return p.AuthorID == authorID }, skip, limit), nil
}

func (r *memPosts) GetFeed(_ context.Context, authorIDs []primitive.ObjectID, skip, limit int64) ([]models.Post, error) {
	return r.filter(func(p *models.Post) bool { return containsID(authorIDs, p.AuthorID) }, skip, limit), nil
}

func (r *memPosts) UpdateContent(_ context.Context, id primitive.ObjectID, content string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	p.Content = content
	return clonePost(p), nil
}

func (r *memPosts) DeletePost(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *memPosts) AddLike(_ context.Context, postID, userID primitive.ObjectID) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.addLikeErr != nil {
		return nil, r.addLikeErr
	}
	p, ok := r.byID[postID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if !containsID(p.LikedBy, userID) {
		p.LikedBy = append(p.LikedBy, userID)
		p.LikesCount++
	}
	return clonePost(p), nil
}

func (r *memPosts) RemoveLike(_ context.Context, postID, userID primitive.ObjectID) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[postID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if containsID(p.LikedBy, userID) {
		p.LikedBy = removeID(p.LikedBy, userID)
		if p.LikesCount > 0 {
			p.LikesCount--
		}
	}
	return clonePost(p), nil
}

func (r *memPosts) IncrementCommentsCount(_ context.Context, postID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[postID]
	if !ok {
		return repositories.ErrNotFound
	}
	p.CommentsCount++
	return nil
}

func (r *memPosts) DecrementCommentsCount(_ context.Context, postID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[postID]; ok && p.CommentsCount > 0 {
		p.CommentsCount--
	}
	return nil
}

func (r *memPosts) SetLikeState(_ context.Context, postID primitive.ObjectID, likedBy []primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[postID]
	if !ok {
		return repositories.ErrNotFound
	}
	p.LikedBy = append([]primitive.ObjectID{}, likedBy...)
	p.LikesCount = len(likedBy)
	return nil
}

func (r *memPosts) SetCommentsCount(_ context.Context, postID primitive.ObjectID, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[postID]
	if !ok {
		return repositories.ErrNotFound
	}
	p.CommentsCount = count
	return nil
}

func (r *memPosts) ForEachPostID(_ context.Context, fn func(primitive.ObjectID) error) error {
	r.mu.Lock()
	var ids []primitive.ObjectID
	for _, id := range r.order {
		if _, ok := r.byID[id]; ok {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()
	for _, id := range ids {
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}

// corrupt overwrites the cached like state without touching the ledger
func (r *memPosts) corrupt(postID primitive.ObjectID, count int, likedBy []primitive.ObjectID, comments int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.byID[postID]
	p.LikesCount = count
	p.LikedBy = likedBy
	p.CommentsCount = comments
}

type pair struct{ a, b primitive.ObjectID }

type memLikes struct {
	mu    sync.Mutex
	edges map[pair]models.Like

	creates int
}

func newMemLikes() *memLikes {
	return &memLikes{edges: map[pair]models.Like{}}
}

func (r *memLikes) CreateLike(_ context.Context, like *models.Like) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := pair{like.UserID, like.PostID}
	if _, ok := r.edges[k]; ok {
		return repositories.ErrDuplicate
	}
	r.edges[k] = *like
	r.creates++
	return nil
}

func (r *memLikes) DeleteLike(_ context.Context, postID, userID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := pair{userID, postID}
	if _, ok := r.edges[k]; !ok {
		return false, nil
	}
	delete(r.edges, k)
	return true, nil
}

func (r *memLikes) HasUserLikedPost(_ context.Context, postID, userID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.edges[pair{userID, postID}]
	return ok, nil
}

func (r *memLikes) GetLikerIDs(_ context.Context, postID primitive.ObjectID) ([]primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := []primitive.ObjectID{}
	for k := range r.edges {
		if k.b == postID {
			ids = append(ids, k.a)
		}
	}
	sortIDs(ids)
	return ids, nil
}

func (r *memLikes) DeleteLikesByPostID(_ context.Context, postID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.edges {
		if k.b == postID {
			delete(r.edges, k)
		}
	}
	return nil
}

func (r *memLikes) count(postID primitive.ObjectID) int {
	ids, _ := r.GetLikerIDs(context.Background(), postID)
	return len(ids)
}

type memFollows struct {
	mu    sync.Mutex
	edges map[pair]models.Follow
}

func newMemFollows() *memFollows {
	return &memFollows{edges: map[pair]models.Follow{}}
}

func (r *memFollows) CreateFollow(_ context.Context, follow *models.Follow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := pair{follow.FollowerID, follow.FollowingID}
	if _, ok := r.edges[k]; ok {
		return repositories.ErrDuplicate
	}
	r.edges[k] = *follow
	return nil
}

func (r *memFollows) DeleteFollow(_ context.Context, followerID, followingID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := pair{followerID, followingID}
	if _, ok := r.edges[k]; !ok {
		return false, nil
	}
	delete(r.edges, k)
	return true, nil
}

func (r *memFollows) IsFollowing(_ context.Context, followerID, followingID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.edges[pair{followerID, followingID}]
	return ok, nil
}

func (r *memFollows) GetFollowerIDs(_ context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := []primitive.ObjectID{}
	for k := range r.edges {
		if k.b == userID {
			ids = append(ids, k.a)
		}
	}
	sortIDs(ids)
	return ids, nil
}

func (r *memFollows) GetFollowingIDs(_ context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := []primitive.ObjectID{}
	for k := range r.edges {
		if k.a == userID {
			ids = append(ids, k.b)
		}
	}
	sortIDs(ids)
	return ids, nil
}

type memNotifications struct {
	mu    sync.Mutex
	items []models.Notification

	createErr error
}

func (r *memNotifications) CreateNotification(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	n.ID = primitive.NewObjectID()
	n.CreatedAt = time.Now().Add(time.Duration(len(r.items)) * time.Millisecond)
	n.IsRead = false
	r.items = append(r.items, *n)
	return nil
}

func (r *memNotifications) GetByRecipientID(_ context.Context, recipientID primitive.ObjectID, skip, limit int64) ([]models.Notification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := []models.Notification{}
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].RecipientID == recipientID {
			all = append(all, r.items[i])
		}
	}
	total := int64(len(all))
	if skip >= total {
		return []models.Notification{}, total, nil
	}
	page := all[skip:]
	if int64(len(page)) > limit {
		page = page[:limit]
	}
	return page, total, nil
}

func (r *memNotifications) GetUnreadCount(_ context.Context, recipientID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, item := range r.items {
		if item.RecipientID == recipientID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *memNotifications) MarkAsRead(_ context.Context, id, recipientID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == id && r.items[i].RecipientID == recipientID {
			r.items[i].IsRead = true
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (r *memNotifications) MarkManyAsRead(_ context.Context, recipientID primitive.ObjectID, ids []primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].RecipientID == recipientID && containsID(ids, r.items[i].ID) {
			r.items[i].IsRead = true
		}
	}
	return nil
}

func (r *memNotifications) forRecipient(id primitive.ObjectID) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.items {
		if n.RecipientID == id {
			out = append(out, n)
		}
	}
	return out
}

type memComments struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]models.Comment
}

func newMemComments() *memComments {
	return &memComments{items: map[primitive.ObjectID]models.Comment{}}
}

func (r *memComments) CreateComment(_ context.Context, c *models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = primitive.NewObjectID()
	c.CreatedAt = time.Now()
	r.items[c.ID] = *c
	return nil
}

func (r *memComments) GetCommentByID(_ context.Context, id primitive.ObjectID) (*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

func (r *memComments) GetCommentsByPostID(_ context.Context, postID primitive.ObjectID) ([]models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Comment{}
	for _, c := range r.items {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memComments) CountByPostID(ctx context.Context, postID primitive.ObjectID) (int64, error) {
	comments, _ := r.GetCommentsByPostID(ctx, postID)
	return int64(len(comments)), nil
}

func (r *memComments) DeleteComment(_ context.Context, id primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return false, nil
	}
	delete(r.items, id)
	return true, nil
}

func (r *memComments) DeleteCommentsByPostID(_ context.Context, postID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.items {
		if c.PostID == postID {
			delete(r.items, id)
		}
	}
	return nil
}

type failingPublisher struct{ err error }

func (p failingPublisher) PublishNotification(context.Context, *models.Notification) error {
	return p.err
}

type failingNotifier struct{ err error }

func (n failingNotifier) Emit(context.Context, EmitRequest) (primitive.ObjectID, error) {
	return primitive.NilObjectID, n.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func addID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	if containsID(ids, id) {
		return ids
	}
	return append(ids, id)
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := []primitive.ObjectID{}
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func sortIDs(ids []primitive.ObjectID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })
}
